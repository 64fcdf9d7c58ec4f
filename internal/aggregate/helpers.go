package aggregate

import (
	"github.com/shopspring/decimal"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/tickmath"
)

const (
	ratioScale = 18
	priceScale = 18
)

// computeRate returns fee/volume, or nil when there was no volume.
func computeRate(fee, volume decimal.Decimal) *string {
	if volume.IsZero() {
		return nil
	}
	rate := fee.DivRound(volume, ratioScale).String()
	return &rate
}

// closePrice renders a Q64.64 sqrt price as a raw token1/token0 price.
func closePrice(sqrtPrice string) *string {
	if sqrtPrice == "" {
		return nil
	}
	sqrt, err := fixedpoint.ParseU128(sqrtPrice)
	if err != nil {
		return nil
	}
	price := tickmath.PriceFromSqrtPrice(sqrt).Round(priceScale).String()
	return &price
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
