package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window.
type PoolWindowMetrics struct {
	PoolID         string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	Volume0        string
	Volume1        string
	Fee0           string
	Fee1           string
	// FeeRate0/1 are realized fee over volume for the side, nil without volume.
	FeeRate0     *string
	FeeRate1     *string
	ClosePrice   *string
	CloseTick    *int32
	Liquidity    *string
	NetLiquidity string
}
