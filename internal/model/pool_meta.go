package model

// PoolMeta captures immutable pool parameters with optional live fields.
type PoolMeta struct {
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	FeeRate     uint32     `json:"fee_rate"`
	TickSpacing uint16     `json:"tick_spacing"`
	Liquidity   string     `json:"liquidity,omitempty"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
}

// PoolSlot0 includes the current price fields.
type PoolSlot0 struct {
	SqrtPriceX64 string `json:"sqrt_price_x64"`
	Tick         int32  `json:"tick"`
}

// MetaOf extracts the metadata view of a pool.
func MetaOf(p Pool, live bool) PoolMeta {
	meta := PoolMeta{
		Token0:      p.Token0.Hex(),
		Token1:      p.Token1.Hex(),
		FeeRate:     p.FeeRate,
		TickSpacing: p.TickSpacing,
	}
	if live {
		meta.Liquidity = p.Liquidity.String()
		meta.Slot0 = &PoolSlot0{SqrtPriceX64: p.SqrtPrice.String(), Tick: p.TickCurrent}
	}
	return meta
}
