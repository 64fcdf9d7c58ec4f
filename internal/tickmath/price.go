package tickmath

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"
)

// priceDivPrecision is the number of decimal places kept when dividing by 2^64.
const priceDivPrecision = 40

var q64Decimal = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64), 0)

// PriceFromSqrtPrice returns token1 per token0 in raw units, (sqrtPrice / 2^64)^2.
func PriceFromSqrtPrice(sqrtPrice uint128.Uint128) decimal.Decimal {
	ratio := decimal.NewFromBigInt(sqrtPrice.Big(), 0).DivRound(q64Decimal, priceDivPrecision)
	return ratio.Mul(ratio)
}

// AdjustedPrice scales the raw price by the token decimals, giving whole token1 per whole token0.
func AdjustedPrice(sqrtPrice uint128.Uint128, decimals0, decimals1 int32) decimal.Decimal {
	return PriceFromSqrtPrice(sqrtPrice).Shift(decimals0 - decimals1)
}

// SqrtPriceFromPrice converts a raw token1/token0 price to Q64.64, rounding down.
func SqrtPriceFromPrice(price decimal.Decimal) (uint128.Uint128, error) {
	if !price.IsPositive() {
		return uint128.Zero, fmt.Errorf("%w: price %s", ErrSqrtPriceOutOfRange, price)
	}
	f, ok := new(big.Float).SetPrec(256).SetString(price.String())
	if !ok {
		return uint128.Zero, fmt.Errorf("parse price %s", price)
	}
	f.Sqrt(f)
	f.SetMantExp(f, 64)
	out, _ := f.Int(nil)
	if out.BitLen() > 128 {
		return uint128.Zero, fmt.Errorf("%w: price %s", ErrSqrtPriceOutOfRange, price)
	}
	sqrtPrice := uint128.FromBig(out)
	if sqrtPrice.Cmp(MinSqrtPrice) < 0 || sqrtPrice.Cmp(MaxSqrtPrice) >= 0 {
		return uint128.Zero, fmt.Errorf("%w: price %s", ErrSqrtPriceOutOfRange, price)
	}
	return sqrtPrice, nil
}
