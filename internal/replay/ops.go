package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"

	"clmmCore/internal/engine"
	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
	"clmmCore/internal/tickmath"
)

// Op kinds accepted in a script.
const (
	OpFund         = "fund"
	OpCreatePool   = "create_pool"
	OpOpenPosition = "open_position"
	OpIncrease     = "increase"
	OpDecrease     = "decrease"
	OpSwap         = "swap"
)

// Op is one line of a replay script. Pools and positions are referenced
// either by address or by the name given when they were created.
type Op struct {
	Line int    `json:"-"`
	Kind string `json:"op"`
	Name string `json:"name,omitempty"`

	Account string `json:"account,omitempty"`
	Mint    string `json:"mint,omitempty"`
	Amount  uint64 `json:"amount,omitempty"`

	TokenA      string `json:"token_a,omitempty"`
	TokenB      string `json:"token_b,omitempty"`
	TickSpacing uint16 `json:"tick_spacing,omitempty"`
	FeeRate     uint32 `json:"fee_rate,omitempty"`
	SqrtPrice   string `json:"sqrt_price,omitempty"`
	Price       string `json:"price,omitempty"`

	Pool      string `json:"pool,omitempty"`
	Owner     string `json:"owner,omitempty"`
	TickLower int32  `json:"tick_lower,omitempty"`
	TickUpper int32  `json:"tick_upper,omitempty"`

	Position   string `json:"position,omitempty"`
	Liquidity  string `json:"liquidity,omitempty"`
	Amount0Max uint64 `json:"amount0_max,omitempty"`
	Amount1Max uint64 `json:"amount1_max,omitempty"`
	Amount0Min uint64 `json:"amount0_min,omitempty"`
	Amount1Min uint64 `json:"amount1_min,omitempty"`

	Trader         string `json:"trader,omitempty"`
	Direction      string `json:"direction,omitempty"`
	AmountIn       uint64 `json:"amount_in,omitempty"`
	SqrtPriceLimit string `json:"sqrt_price_limit,omitempty"`
	MinAmountOut   uint64 `json:"min_amount_out,omitempty"`
}

// ReadOps loads a script. Blank lines and lines starting with # are skipped
// but still count toward line numbers.
func ReadOps(path string) ([]Op, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer file.Close()

	var ops []Op
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var op Op
		if err := json.Unmarshal([]byte(text), &op); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ops, nil
}

// names resolves script names to derived identities.
type names map[string]common.Address

func (n names) resolve(field, ref string) (common.Address, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if addr, ok := n[ref]; ok {
		return addr, nil
	}
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	return common.Address{}, fmt.Errorf("unknown %s %q", field, ref)
}

func (n names) bind(name string, addr common.Address) {
	if name != "" {
		n[name] = addr
	}
}

func parseU128Field(field, s string) (uint128.Uint128, error) {
	v, err := fixedpoint.ParseU128(strings.TrimSpace(s))
	if err != nil {
		return uint128.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func (op Op) createPoolRequest() (engine.CreatePoolRequest, error) {
	tokenA, err := ParseAddress(op.TokenA)
	if err != nil {
		return engine.CreatePoolRequest{}, fmt.Errorf("token_a: %w", err)
	}
	tokenB, err := ParseAddress(op.TokenB)
	if err != nil {
		return engine.CreatePoolRequest{}, fmt.Errorf("token_b: %w", err)
	}
	var sqrtPrice uint128.Uint128
	switch {
	case op.SqrtPrice != "" && op.Price != "":
		return engine.CreatePoolRequest{}, fmt.Errorf("sqrt_price and price are exclusive")
	case op.SqrtPrice != "":
		sqrtPrice, err = parseU128Field("sqrt_price", op.SqrtPrice)
	case op.Price != "":
		var price decimal.Decimal
		price, err = decimal.NewFromString(op.Price)
		if err == nil {
			sqrtPrice, err = tickmath.SqrtPriceFromPrice(price)
		}
		if err != nil {
			err = fmt.Errorf("price: %w", err)
		}
	default:
		return engine.CreatePoolRequest{}, fmt.Errorf("sqrt_price or price is required")
	}
	if err != nil {
		return engine.CreatePoolRequest{}, err
	}
	return engine.CreatePoolRequest{
		TokenA:      tokenA,
		TokenB:      tokenB,
		TickSpacing: op.TickSpacing,
		FeeRate:     op.FeeRate,
		SqrtPrice:   sqrtPrice,
	}, nil
}

func derivedPoolID(req engine.CreatePoolRequest) common.Address {
	token0, token1 := model.SortTokens(req.TokenA, req.TokenB)
	return model.PoolID(token0, token1, req.TickSpacing, req.FeeRate)
}

func (op Op) openPositionRequest(n names) (engine.OpenPositionRequest, error) {
	pool, err := n.resolve("pool", op.Pool)
	if err != nil {
		return engine.OpenPositionRequest{}, err
	}
	owner, err := ParseAddress(op.Owner)
	if err != nil {
		return engine.OpenPositionRequest{}, fmt.Errorf("owner: %w", err)
	}
	return engine.OpenPositionRequest{
		PoolID:    pool,
		Owner:     owner,
		TickLower: op.TickLower,
		TickUpper: op.TickUpper,
	}, nil
}

func (op Op) increaseRequest(n names) (engine.IncreaseRequest, error) {
	position, err := n.resolve("position", op.Position)
	if err != nil {
		return engine.IncreaseRequest{}, err
	}
	owner, err := ParseAddress(op.Owner)
	if err != nil {
		return engine.IncreaseRequest{}, fmt.Errorf("owner: %w", err)
	}
	liq, err := parseU128Field("liquidity", op.Liquidity)
	if err != nil {
		return engine.IncreaseRequest{}, err
	}
	return engine.IncreaseRequest{
		PositionID: position,
		Owner:      owner,
		Liquidity:  liq,
		Amount0Max: op.Amount0Max,
		Amount1Max: op.Amount1Max,
	}, nil
}

func (op Op) decreaseRequest(n names) (engine.DecreaseRequest, error) {
	position, err := n.resolve("position", op.Position)
	if err != nil {
		return engine.DecreaseRequest{}, err
	}
	owner, err := ParseAddress(op.Owner)
	if err != nil {
		return engine.DecreaseRequest{}, fmt.Errorf("owner: %w", err)
	}
	liq, err := parseU128Field("liquidity", op.Liquidity)
	if err != nil {
		return engine.DecreaseRequest{}, err
	}
	return engine.DecreaseRequest{
		PositionID: position,
		Owner:      owner,
		Liquidity:  liq,
		Amount0Min: op.Amount0Min,
		Amount1Min: op.Amount1Min,
	}, nil
}

func (op Op) swapRequest(n names) (engine.SwapRequest, error) {
	pool, err := n.resolve("pool", op.Pool)
	if err != nil {
		return engine.SwapRequest{}, err
	}
	trader, err := ParseAddress(op.Trader)
	if err != nil {
		return engine.SwapRequest{}, fmt.Errorf("trader: %w", err)
	}
	direction, err := model.ParseDirection(op.Direction)
	if err != nil {
		return engine.SwapRequest{}, err
	}
	limit, err := parseU128Field("sqrt_price_limit", op.SqrtPriceLimit)
	if err != nil {
		return engine.SwapRequest{}, err
	}
	return engine.SwapRequest{
		PoolID:         pool,
		Trader:         trader,
		Direction:      direction,
		AmountIn:       op.AmountIn,
		SqrtPriceLimit: limit,
		MinAmountOut:   op.MinAmountOut,
	}, nil
}
