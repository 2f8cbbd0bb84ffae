package felt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/fxamacker/cbor/v2"
)

// Felt is an element of the Stark prime field. The zero value is ready to
// use and equals 0.
type Felt struct {
	val fp.Element
}

// Zero is the additive identity. Callers must not mutate it.
var Zero = Felt{}

const (
	Base16 = 16
	Base10 = 10
)

// New returns a felt set to the given unsigned integer.
func New(v uint64) Felt {
	var f Felt
	f.SetUint64(v)
	return f
}

// FromString parses a decimal or 0x-prefixed hexadecimal representation.
func FromString(s string) (*Felt, error) {
	return new(Felt).SetString(s)
}

func (z *Felt) SetString(number string) (*Felt, error) {
	base := Base10
	if strings.HasPrefix(number, "0x") || strings.HasPrefix(number, "0X") {
		number = number[2:]
		base = Base16
	}

	bi, ok := new(big.Int).SetString(number, base)
	if !ok {
		return nil, fmt.Errorf("invalid felt string %q", number)
	}
	if bi.Sign() < 0 {
		return nil, errors.New("felt cannot be negative")
	}
	if bi.Cmp(fp.Modulus()) >= 0 {
		return nil, errors.New("number does not fit in a felt")
	}

	z.val.SetBigInt(bi)
	return z, nil
}

func (z *Felt) SetUint64(v uint64) *Felt {
	z.val.SetUint64(v)
	return z
}

func (z *Felt) SetBigInt(v *big.Int) *Felt {
	z.val.SetBigInt(v)
	return z
}

// SetBytes interprets buf as a big-endian unsigned integer, reduced into the
// field.
func (z *Felt) SetBytes(buf []byte) *Felt {
	z.val.SetBytes(buf)
	return z
}

func (z *Felt) Set(x *Felt) *Felt {
	z.val.Set(&x.val)
	return z
}

// Bytes returns the canonical 32-byte big-endian representation.
func (z *Felt) Bytes() [32]byte {
	return z.val.Bytes()
}

// Marshal returns the 32-byte big-endian representation as a slice.
func (z *Felt) Marshal() []byte {
	b := z.val.Bytes()
	return b[:]
}

func (z *Felt) Unmarshal(buf []byte) {
	z.val.SetBytes(buf)
}

// String returns the canonical hex form: lowercase, 0x-prefixed, no leading
// zeros ("0x0" for zero).
func (z *Felt) String() string {
	return "0x" + z.val.Text(Base16)
}

// ShortString truncates long values for log output.
func (z *Felt) ShortString() string {
	hex := z.val.Text(Base16)
	if len(hex) <= 8 {
		return "0x" + hex
	}
	return fmt.Sprintf("0x%s...%s", hex[:4], hex[len(hex)-4:])
}

func (z *Felt) Equal(x *Felt) bool {
	return z.val.Equal(&x.val)
}

func (z *Felt) Cmp(x *Felt) int {
	return z.val.Cmp(&x.val)
}

func (z *Felt) IsZero() bool {
	return z.val.IsZero()
}

func (z *Felt) IsOne() bool {
	return z.val.IsOne()
}

func (z *Felt) Add(x, y *Felt) *Felt {
	z.val.Add(&x.val, &y.val)
	return z
}

func (z *Felt) Sub(x, y *Felt) *Felt {
	z.val.Sub(&x.val, &y.val)
	return z
}

func (z *Felt) Mul(x, y *Felt) *Felt {
	z.val.Mul(&x.val, &y.val)
	return z
}

func (z *Felt) BigInt(res *big.Int) *big.Int {
	return z.val.BigInt(res)
}

// Uint64 returns the value as a uint64, erroring when it does not fit.
func (z *Felt) Uint64() (uint64, error) {
	bi := z.val.BigInt(new(big.Int))
	if !bi.IsUint64() {
		return 0, fmt.Errorf("felt %s does not fit in a uint64", z)
	}
	return bi.Uint64(), nil
}

func (z *Felt) Clone() *Felt {
	if z == nil {
		return nil
	}
	clone := *z
	return &clone
}

func (z Felt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + z.String() + `"`), nil
}

func (z *Felt) UnmarshalJSON(data []byte) error {
	// Accept both string-quoted and bare-number forms; hex must be quoted.
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		_, err := z.SetString(s)
		return err
	}
	_, err := z.SetString(string(data))
	return err
}

func (z Felt) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

func (z *Felt) UnmarshalText(text []byte) error {
	_, err := z.SetString(string(text))
	return err
}

func (z Felt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(z.Marshal())
}

func (z *Felt) UnmarshalCBOR(data []byte) error {
	var buf []byte
	if err := cbor.Unmarshal(data, &buf); err != nil {
		return err
	}
	z.SetBytes(buf)
	return nil
}
