package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"clmmCore/internal/model"
)

// Encoder turns decoded event payloads back into journal log records.
type Encoder struct {
	poolABI abi.ABI
}

func NewEncoder() (*Encoder, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}
	return &Encoder{poolABI: poolABI}, nil
}

// Encode fills Topics and Data of a record for the pool at address.
// The caller owns the sequencing fields.
func (e *Encoder) Encode(address common.Address, decoded interface{}) (model.LogRecord, error) {
	var (
		name    string
		indexed []common.Hash
		values  []interface{}
		err     error
	)
	switch v := decoded.(type) {
	case model.PoolCreatedEventData:
		name = model.EventPoolCreated
		indexed, values, err = encodePoolCreated(v)
	case model.PositionOpenedEventData:
		name = model.EventPositionOpened
		indexed, values, err = encodePositionOpened(v)
	case model.IncreaseLiquidityEventData:
		name = model.EventIncreaseLiquidity
		indexed, values, err = encodeLiquidityChange(liquidityChange(v))
	case model.DecreaseLiquidityEventData:
		name = model.EventDecreaseLiquidity
		indexed, values, err = encodeLiquidityChange(liquidityChange(v))
	case model.SwapEventData:
		name = model.EventSwap
		indexed, values, err = encodeSwap(v)
	default:
		return model.LogRecord{}, fmt.Errorf("unsupported event payload %T", decoded)
	}
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("encode %s: %w", name, err)
	}

	event := e.poolABI.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", name, err)
	}

	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, event.ID.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}
	return model.LogRecord{
		Address: address.Hex(),
		Topics:  topics,
		Data:    hexutil.Encode(data),
	}, nil
}

func encodePoolCreated(v model.PoolCreatedEventData) ([]common.Hash, []interface{}, error) {
	token0, err := hexAddress(v.Token0)
	if err != nil {
		return nil, nil, err
	}
	token1, err := hexAddress(v.Token1)
	if err != nil {
		return nil, nil, err
	}
	vault0, err := hexAddress(v.Vault0)
	if err != nil {
		return nil, nil, err
	}
	vault1, err := hexAddress(v.Vault1)
	if err != nil {
		return nil, nil, err
	}
	sqrtPrice, err := decimalBig(v.SqrtPriceX64)
	if err != nil {
		return nil, nil, err
	}
	return []common.Hash{topicFromAddress(token0), topicFromAddress(token1)},
		[]interface{}{v.FeeRate, v.TickSpacing, vault0, vault1, sqrtPrice, big.NewInt(int64(v.Tick))},
		nil
}

func encodePositionOpened(v model.PositionOpenedEventData) ([]common.Hash, []interface{}, error) {
	owner, err := hexAddress(v.Owner)
	if err != nil {
		return nil, nil, err
	}
	position, err := hexAddress(v.Position)
	if err != nil {
		return nil, nil, err
	}
	return []common.Hash{topicFromAddress(owner), topicFromInt24(v.TickLower), topicFromInt24(v.TickUpper)},
		[]interface{}{position},
		nil
}

func encodeLiquidityChange(v liquidityChange) ([]common.Hash, []interface{}, error) {
	owner, err := hexAddress(v.Owner)
	if err != nil {
		return nil, nil, err
	}
	position, err := hexAddress(v.Position)
	if err != nil {
		return nil, nil, err
	}
	liquidity, err := decimalBig(v.Liquidity)
	if err != nil {
		return nil, nil, err
	}
	amount0, err := decimalUint64(v.Amount0)
	if err != nil {
		return nil, nil, err
	}
	amount1, err := decimalUint64(v.Amount1)
	if err != nil {
		return nil, nil, err
	}
	return []common.Hash{topicFromAddress(owner), topicFromInt24(v.TickLower), topicFromInt24(v.TickUpper)},
		[]interface{}{position, liquidity, amount0, amount1},
		nil
}

func encodeSwap(v model.SwapEventData) ([]common.Hash, []interface{}, error) {
	sender, err := hexAddress(v.Sender)
	if err != nil {
		return nil, nil, err
	}
	amountIn, err := decimalUint64(v.AmountIn)
	if err != nil {
		return nil, nil, err
	}
	amountOut, err := decimalUint64(v.AmountOut)
	if err != nil {
		return nil, nil, err
	}
	feeAmount, err := decimalUint64(v.FeeAmount)
	if err != nil {
		return nil, nil, err
	}
	sqrtPrice, err := decimalBig(v.SqrtPriceX64)
	if err != nil {
		return nil, nil, err
	}
	liquidity, err := decimalBig(v.Liquidity)
	if err != nil {
		return nil, nil, err
	}
	return []common.Hash{topicFromAddress(sender)},
		[]interface{}{v.ZeroForOne, amountIn, amountOut, feeAmount, sqrtPrice, liquidity, big.NewInt(int64(v.Tick))},
		nil
}

func hexAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func decimalBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid unsigned integer %q", s)
	}
	return v, nil
}

func decimalUint64(s string) (uint64, error) {
	v, err := decimalBig(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%q exceeds 64 bits", s)
	}
	return v.Uint64(), nil
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// topicFromInt24 encodes a signed tick as a two's complement 256-bit word.
func topicFromInt24(value int32) common.Hash {
	return common.BigToHash(math.U256(big.NewInt(int64(value))))
}
