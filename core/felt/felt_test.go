package felt_test

import (
	"encoding/json"
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetString(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    string
		wantErr bool
	}{
		"hex":             {input: "0xDEADBEEF", want: "0xdeadbeef"},
		"hex lowercase":   {input: "0xdeadbeef", want: "0xdeadbeef"},
		"decimal":         {input: "100", want: "0x64"},
		"zero":            {input: "0x0", want: "0x0"},
		"leading zeros":   {input: "0x000abc", want: "0xabc"},
		"empty":           {input: "", wantErr: true},
		"garbage":         {input: "0xnothex", wantErr: true},
		"negative":        {input: "-5", wantErr: true},
		"over field size": {input: "0x800000000000011000000000000000000000000000000000000000000000001", wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := new(felt.Felt).SetString(test.input)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, f.String())
		})
	}
}

func TestBytesRoundTrip(t *testing.T) {
	f, err := new(felt.Felt).SetString("0x4e5f")
	require.NoError(t, err)

	got := new(felt.Felt).SetBytes(f.Marshal())
	assert.True(t, f.Equal(got))
}

func TestJSONRoundTrip(t *testing.T) {
	f, err := new(felt.Felt).SetString("0xcafe")
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `"0xcafe"`, string(data))

	var got felt.Felt
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, f.Equal(&got))

	// Bare decimal is accepted too.
	require.NoError(t, json.Unmarshal([]byte("11"), &got))
	assert.Equal(t, "0xb", got.String())
}

func TestArithmetic(t *testing.T) {
	a := felt.New(100)
	b := felt.New(42)

	sum := new(felt.Felt).Add(&a, &b)
	assert.Equal(t, "0x8e", sum.String())

	diff := new(felt.Felt).Sub(sum, &b)
	assert.True(t, diff.Equal(&a))

	v, err := sum.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(142), v)
}

func TestOrdering(t *testing.T) {
	small := felt.New(1)
	big := felt.New(2)

	assert.Negative(t, small.Cmp(&big))
	assert.Positive(t, big.Cmp(&small))
	assert.Zero(t, small.Cmp(&small))
}

func TestShortString(t *testing.T) {
	long, err := new(felt.Felt).SetString("0x123456789abcdef123")
	require.NoError(t, err)
	assert.Equal(t, "0x1234...f123", long.ShortString())

	short := felt.New(0xab)
	assert.Equal(t, "0xab", short.ShortString())
}

func TestZeroIsUsable(t *testing.T) {
	assert.True(t, felt.Zero.IsZero())
	assert.Equal(t, "0x0", felt.Zero.String())
}
