package model

// Event names carried in the journal.
const (
	EventPoolCreated       = "PoolCreated"
	EventPositionOpened    = "PositionOpened"
	EventIncreaseLiquidity = "IncreaseLiquidity"
	EventDecreaseLiquidity = "DecreaseLiquidity"
	EventSwap              = "Swap"
)

// SwapEventData is the decoded Swap event payload.
type SwapEventData struct {
	Sender       string `json:"sender"`
	ZeroForOne   bool   `json:"zero_for_one"`
	AmountIn     string `json:"amount_in"`
	AmountOut    string `json:"amount_out"`
	FeeAmount    string `json:"fee_amount"`
	SqrtPriceX64 string `json:"sqrt_price_x64"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// IncreaseLiquidityEventData is the decoded IncreaseLiquidity event payload.
type IncreaseLiquidityEventData struct {
	Position  string `json:"position"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// DecreaseLiquidityEventData is the decoded DecreaseLiquidity event payload.
type DecreaseLiquidityEventData struct {
	Position  string `json:"position"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// PoolCreatedEventData is the decoded PoolCreated event payload.
type PoolCreatedEventData struct {
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	FeeRate      uint32 `json:"fee_rate"`
	TickSpacing  uint16 `json:"tick_spacing"`
	Vault0       string `json:"vault0"`
	Vault1       string `json:"vault1"`
	SqrtPriceX64 string `json:"sqrt_price_x64"`
	Tick         int32  `json:"tick"`
}

// PositionOpenedEventData is the decoded PositionOpened event payload.
type PositionOpenedEventData struct {
	Owner     string `json:"owner"`
	Position  string `json:"position"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
}
