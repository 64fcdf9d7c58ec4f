package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

// Resolution is the number of fractional bits in a Q64.64 value.
const Resolution = 64

var (
	ErrMathOverflow   = errors.New("math overflow")
	ErrMathUnderflow  = errors.New("math underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// Q64 is 1.0 in Q64.64.
var Q64 = uint128.New(0, 1)

// U256 widens a u128 value.
func U256(v uint128.Uint128) *uint256.Int {
	return &uint256.Int{v.Lo, v.Hi, 0, 0}
}

// U256From64 widens a u64 value.
func U256From64(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// ToU128 narrows x, failing with ErrMathOverflow when it does not fit.
func ToU128(x *uint256.Int) (uint128.Uint128, error) {
	if x[2] != 0 || x[3] != 0 {
		return uint128.Zero, fmt.Errorf("%w: value exceeds 128 bits", ErrMathOverflow)
	}
	return uint128.New(x[0], x[1]), nil
}

// ToU64 narrows x, failing with ErrMathOverflow when it does not fit.
func ToU64(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, fmt.Errorf("%w: value exceeds 64 bits", ErrMathOverflow)
	}
	return x.Uint64(), nil
}

// MulDiv computes floor(x*y/d) with a 512-bit intermediate product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("%w: mulDiv result exceeds 256 bits", ErrMathOverflow)
	}
	return z, nil
}

// MulDivRoundingUp computes ceil(x*y/d) with a 512-bit intermediate product.
func MulDivRoundingUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	if !new(uint256.Int).MulMod(x, y, d).IsZero() {
		var carry bool
		z, carry = z.AddOverflow(z, uint256.NewInt(1))
		if carry {
			return nil, fmt.Errorf("%w: mulDiv rounding", ErrMathOverflow)
		}
	}
	return z, nil
}

// DivRoundingUp computes ceil(x/d).
func DivRoundingUp(x, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	q := new(uint256.Int).Div(x, d)
	if !new(uint256.Int).Mod(x, d).IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// Add128 adds two u128 values, failing instead of wrapping.
func Add128(a, b uint128.Uint128) (uint128.Uint128, error) {
	sum := a.AddWrap(b)
	if sum.Cmp(a) < 0 {
		return uint128.Zero, fmt.Errorf("%w: %s + %s", ErrMathOverflow, a, b)
	}
	return sum, nil
}

// Sub128 subtracts b from a, failing instead of wrapping.
func Sub128(a, b uint128.Uint128) (uint128.Uint128, error) {
	if a.Cmp(b) < 0 {
		return uint128.Zero, fmt.Errorf("%w: %s - %s", ErrMathUnderflow, a, b)
	}
	return a.Sub(b), nil
}

// Add64 adds two token amounts, failing instead of wrapping.
func Add64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%w: %d + %d", ErrMathOverflow, a, b)
	}
	return sum, nil
}

// Sub64 subtracts token amounts, failing instead of wrapping.
func Sub64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", ErrMathUnderflow, a, b)
	}
	return a - b, nil
}

// ParseU128 parses a base-10 u128 string.
func ParseU128(s string) (uint128.Uint128, error) {
	if s == "" {
		return uint128.Zero, nil
	}
	v, err := uint128.FromString(s)
	if err != nil {
		return uint128.Zero, fmt.Errorf("invalid u128 %q: %w", s, err)
	}
	return v, nil
}
