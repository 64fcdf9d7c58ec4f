package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"lukechampine.com/uint128"
)

// maxInt128Abs is 2^127, the first magnitude that no longer fits a signed 128-bit value.
var maxInt128Abs = uint128.New(0, 1<<63)

// Int128 is a signed 128-bit integer in sign-magnitude form. The zero value is 0.
type Int128 struct {
	neg bool
	abs uint128.Uint128
}

// NewInt128 builds a signed value from a magnitude and a sign.
func NewInt128(abs uint128.Uint128, neg bool) (Int128, error) {
	if abs.Cmp(maxInt128Abs) >= 0 {
		return Int128{}, fmt.Errorf("%w: %s does not fit int128", ErrMathOverflow, abs)
	}
	if abs.IsZero() {
		neg = false
	}
	return Int128{neg: neg, abs: abs}, nil
}

// Int128From64 converts a signed 64-bit value.
func Int128From64(v int64) Int128 {
	if v < 0 {
		return Int128{neg: true, abs: uint128.From64(uint64(-(v + 1)) + 1)}
	}
	return Int128{abs: uint128.From64(uint64(v))}
}

func (x Int128) Sign() int {
	switch {
	case x.abs.IsZero():
		return 0
	case x.neg:
		return -1
	default:
		return 1
	}
}

func (x Int128) IsZero() bool { return x.abs.IsZero() }

// Abs returns the magnitude.
func (x Int128) Abs() uint128.Uint128 { return x.abs }

func (x Int128) Neg() Int128 {
	if x.abs.IsZero() {
		return x
	}
	return Int128{neg: !x.neg, abs: x.abs}
}

func (x Int128) Equals(y Int128) bool {
	return x.neg == y.neg && x.abs.Equals(y.abs)
}

// Add returns x+y, failing with ErrMathOverflow outside the int128 range.
func (x Int128) Add(y Int128) (Int128, error) {
	if x.neg == y.neg {
		sum, err := Add128(x.abs, y.abs)
		if err != nil {
			return Int128{}, err
		}
		return NewInt128(sum, x.neg)
	}
	if x.abs.Cmp(y.abs) >= 0 {
		return NewInt128(x.abs.Sub(y.abs), x.neg)
	}
	return NewInt128(y.abs.Sub(x.abs), y.neg)
}

// Sub returns x-y.
func (x Int128) Sub(y Int128) (Int128, error) {
	return x.Add(y.Neg())
}

// ApplyTo adds x to an unsigned liquidity value, failing on underflow or overflow.
func (x Int128) ApplyTo(v uint128.Uint128) (uint128.Uint128, error) {
	if x.neg {
		return Sub128(v, x.abs)
	}
	return Add128(v, x.abs)
}

func (x Int128) String() string {
	if x.neg {
		return "-" + x.abs.String()
	}
	return x.abs.String()
}

func (x Int128) Big() *big.Int {
	b := x.abs.Big()
	if x.neg {
		b.Neg(b)
	}
	return b
}

// ParseInt128 parses a base-10 signed string.
func ParseInt128(s string) (Int128, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Int128{}, nil
	}
	neg := strings.HasPrefix(s, "-")
	abs, err := uint128.FromString(strings.TrimPrefix(s, "-"))
	if err != nil {
		return Int128{}, fmt.Errorf("invalid int128 %q: %w", s, err)
	}
	return NewInt128(abs, neg)
}
