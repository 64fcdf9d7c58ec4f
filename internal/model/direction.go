package model

import "fmt"

// Direction is the side a swap sells.
type Direction uint8

const (
	// ZeroForOne sells token0 for token1; price moves down.
	ZeroForOne Direction = iota
	// OneForZero sells token1 for token0; price moves up.
	OneForZero
)

// Valid reports whether d is one of the two swap directions.
func (d Direction) Valid() bool {
	return d == ZeroForOne || d == OneForZero
}

func (d Direction) String() string {
	switch d {
	case ZeroForOne:
		return "zero_for_one"
	case OneForZero:
		return "one_for_zero"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection accepts the String form as well as the short aliases "0to1"/"1to0".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "zero_for_one", "0to1", "zero-for-one":
		return ZeroForOne, nil
	case "one_for_zero", "1to0", "one-for-zero":
		return OneForZero, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}
