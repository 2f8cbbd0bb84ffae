package utils

// Map returns the result of applying f to each element of slice. A nil slice
// maps to a nil slice.
func Map[T1, T2 any](slice []T1, f func(T1) T2) []T2 {
	if slice == nil {
		return nil
	}

	result := make([]T2, len(slice))
	for i, e := range slice {
		result[i] = f(e)
	}
	return result
}

// Filter returns the elements of slice for which f returns true.
func Filter[T any](slice []T, f func(T) bool) []T {
	var result []T
	for _, e := range slice {
		if f(e) {
			result = append(result, e)
		}
	}
	return result
}

// All returns true if f holds for every element of slice.
func All[T any](slice []T, f func(T) bool) bool {
	for _, e := range slice {
		if !f(e) {
			return false
		}
	}
	return true
}

// AnyOf returns true if the needle compares equal to at least one of the
// candidates.
func AnyOf[T comparable](needle T, candidates ...T) bool {
	for _, c := range candidates {
		if needle == c {
			return true
		}
	}
	return false
}

func Flatten[T any](sls ...[]T) []T {
	var result []T
	for _, sl := range sls {
		result = append(result, sl...)
	}
	return result
}

// HeapPtr makes a heap copy of the given value and returns its address.
func HeapPtr[T any](v T) *T {
	return &v
}
