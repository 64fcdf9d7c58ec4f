package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
)

// PoolRecord is the serialized form of a pool. 128-bit values are decimal strings.
type PoolRecord struct {
	ID               string `json:"id"`
	Token0           string `json:"token0"`
	Token1           string `json:"token1"`
	Vault0           string `json:"vault0"`
	Vault1           string `json:"vault1"`
	TickSpacing      uint16 `json:"tick_spacing"`
	FeeRate          uint32 `json:"fee_rate"`
	SqrtPrice        string `json:"sqrt_price_x64"`
	TickCurrent      int32  `json:"tick_current"`
	Liquidity        string `json:"liquidity"`
	FeeGrowthGlobal0 string `json:"fee_growth_global0_x64"`
	FeeGrowthGlobal1 string `json:"fee_growth_global1_x64"`
}

// PositionRecord is the serialized form of a position.
type PositionRecord struct {
	ID                   string `json:"id"`
	Owner                string `json:"owner"`
	PoolID               string `json:"pool_id"`
	TickLower            int32  `json:"tick_lower"`
	TickUpper            int32  `json:"tick_upper"`
	Liquidity            string `json:"liquidity"`
	FeeGrowthInside0Last string `json:"fee_growth_inside0_last_x64"`
	FeeGrowthInside1Last string `json:"fee_growth_inside1_last_x64"`
	TokensOwed0          uint64 `json:"tokens_owed0"`
	TokensOwed1          uint64 `json:"tokens_owed1"`
}

// TickRecord is one non-empty slot of a tick page.
type TickRecord struct {
	Index             int    `json:"index"`
	LiquidityGross    string `json:"liquidity_gross"`
	LiquidityNet      string `json:"liquidity_net"`
	FeeGrowthOutside0 string `json:"fee_growth_outside0_x64"`
	FeeGrowthOutside1 string `json:"fee_growth_outside1_x64"`
}

// TickArrayRecord is the serialized form of a tick page. Empty slots are omitted.
type TickArrayRecord struct {
	PoolID         string       `json:"pool_id"`
	StartTickIndex int32        `json:"start_tick_index"`
	Ticks          []TickRecord `json:"ticks"`
}

func EncodePool(p model.Pool) PoolRecord {
	return PoolRecord{
		ID:               p.ID.Hex(),
		Token0:           p.Token0.Hex(),
		Token1:           p.Token1.Hex(),
		Vault0:           p.Vault0.Hex(),
		Vault1:           p.Vault1.Hex(),
		TickSpacing:      p.TickSpacing,
		FeeRate:          p.FeeRate,
		SqrtPrice:        p.SqrtPrice.String(),
		TickCurrent:      p.TickCurrent,
		Liquidity:        p.Liquidity.String(),
		FeeGrowthGlobal0: p.FeeGrowthGlobal0.String(),
		FeeGrowthGlobal1: p.FeeGrowthGlobal1.String(),
	}
}

func DecodePool(r PoolRecord) (model.Pool, error) {
	p := model.Pool{
		TickSpacing: r.TickSpacing,
		FeeRate:     r.FeeRate,
		TickCurrent: r.TickCurrent,
	}
	var err error
	for _, f := range []struct {
		name string
		src  string
		dst  *common.Address
	}{
		{"id", r.ID, &p.ID},
		{"token0", r.Token0, &p.Token0},
		{"token1", r.Token1, &p.Token1},
		{"vault0", r.Vault0, &p.Vault0},
		{"vault1", r.Vault1, &p.Vault1},
	} {
		if *f.dst, err = parseAddress(f.src); err != nil {
			return model.Pool{}, fmt.Errorf("pool %s: %w", f.name, err)
		}
	}
	if p.SqrtPrice, err = fixedpoint.ParseU128(r.SqrtPrice); err != nil {
		return model.Pool{}, fmt.Errorf("pool sqrt price: %w", err)
	}
	if p.Liquidity, err = fixedpoint.ParseU128(r.Liquidity); err != nil {
		return model.Pool{}, fmt.Errorf("pool liquidity: %w", err)
	}
	if p.FeeGrowthGlobal0, err = fixedpoint.ParseU128(r.FeeGrowthGlobal0); err != nil {
		return model.Pool{}, fmt.Errorf("pool fee growth 0: %w", err)
	}
	if p.FeeGrowthGlobal1, err = fixedpoint.ParseU128(r.FeeGrowthGlobal1); err != nil {
		return model.Pool{}, fmt.Errorf("pool fee growth 1: %w", err)
	}
	return p, nil
}

func EncodePosition(p model.Position) PositionRecord {
	return PositionRecord{
		ID:                   p.ID.Hex(),
		Owner:                p.Owner.Hex(),
		PoolID:               p.PoolID.Hex(),
		TickLower:            p.TickLower,
		TickUpper:            p.TickUpper,
		Liquidity:            p.Liquidity.String(),
		FeeGrowthInside0Last: p.FeeGrowthInside0Last.String(),
		FeeGrowthInside1Last: p.FeeGrowthInside1Last.String(),
		TokensOwed0:          p.TokensOwed0,
		TokensOwed1:          p.TokensOwed1,
	}
}

func DecodePosition(r PositionRecord) (model.Position, error) {
	p := model.Position{
		TickLower:   r.TickLower,
		TickUpper:   r.TickUpper,
		TokensOwed0: r.TokensOwed0,
		TokensOwed1: r.TokensOwed1,
	}
	var err error
	if p.ID, err = parseAddress(r.ID); err != nil {
		return model.Position{}, fmt.Errorf("position id: %w", err)
	}
	if p.Owner, err = parseAddress(r.Owner); err != nil {
		return model.Position{}, fmt.Errorf("position owner: %w", err)
	}
	if p.PoolID, err = parseAddress(r.PoolID); err != nil {
		return model.Position{}, fmt.Errorf("position pool: %w", err)
	}
	if p.Liquidity, err = fixedpoint.ParseU128(r.Liquidity); err != nil {
		return model.Position{}, fmt.Errorf("position liquidity: %w", err)
	}
	if p.FeeGrowthInside0Last, err = fixedpoint.ParseU128(r.FeeGrowthInside0Last); err != nil {
		return model.Position{}, fmt.Errorf("position fee growth 0: %w", err)
	}
	if p.FeeGrowthInside1Last, err = fixedpoint.ParseU128(r.FeeGrowthInside1Last); err != nil {
		return model.Position{}, fmt.Errorf("position fee growth 1: %w", err)
	}
	return p, nil
}

func EncodeTickArray(ta model.TickArray) TickArrayRecord {
	rec := TickArrayRecord{
		PoolID:         ta.PoolID.Hex(),
		StartTickIndex: ta.StartTickIndex,
		Ticks:          make([]TickRecord, 0, ta.InitializedCount()),
	}
	for i, t := range ta.Ticks {
		if !t.Initialized {
			continue
		}
		rec.Ticks = append(rec.Ticks, TickRecord{
			Index:             i,
			LiquidityGross:    t.LiquidityGross.String(),
			LiquidityNet:      t.LiquidityNet.String(),
			FeeGrowthOutside0: t.FeeGrowthOutside0.String(),
			FeeGrowthOutside1: t.FeeGrowthOutside1.String(),
		})
	}
	return rec
}

func DecodeTickArray(r TickArrayRecord) (model.TickArray, error) {
	poolID, err := parseAddress(r.PoolID)
	if err != nil {
		return model.TickArray{}, fmt.Errorf("tick array pool: %w", err)
	}
	ta := model.TickArray{PoolID: poolID, StartTickIndex: r.StartTickIndex}
	for _, rec := range r.Ticks {
		if rec.Index < 0 || rec.Index >= model.TickArraySize {
			return model.TickArray{}, fmt.Errorf("tick array %d: slot %d out of range", r.StartTickIndex, rec.Index)
		}
		t := model.Tick{Initialized: true}
		if t.LiquidityGross, err = fixedpoint.ParseU128(rec.LiquidityGross); err != nil {
			return model.TickArray{}, fmt.Errorf("tick %d gross: %w", rec.Index, err)
		}
		if t.LiquidityNet, err = fixedpoint.ParseInt128(rec.LiquidityNet); err != nil {
			return model.TickArray{}, fmt.Errorf("tick %d net: %w", rec.Index, err)
		}
		if t.FeeGrowthOutside0, err = fixedpoint.ParseU128(rec.FeeGrowthOutside0); err != nil {
			return model.TickArray{}, fmt.Errorf("tick %d outside 0: %w", rec.Index, err)
		}
		if t.FeeGrowthOutside1, err = fixedpoint.ParseU128(rec.FeeGrowthOutside1); err != nil {
			return model.TickArray{}, fmt.Errorf("tick %d outside 1: %w", rec.Index, err)
		}
		ta.Ticks[rec.Index] = t
	}
	return ta, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
