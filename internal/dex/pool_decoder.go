package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"clmmCore/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	Topic0Map map[string]string
}

// PoolDecoder decodes pool journal events.
type PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewPoolDecoder builds a pool event decoder.
func NewPoolDecoder(cfg DecoderConfig) (*PoolDecoder, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(eventNames))
	for _, name := range eventNames {
		topicToName[strings.ToLower(poolABI.Events[name].ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &PoolDecoder{
		poolABI:     poolABI,
		topicToName: topicToName,
	}, nil
}

var eventNames = []string{
	model.EventPoolCreated,
	model.EventPositionOpened,
	model.EventIncreaseLiquidity,
	model.EventDecreaseLiquidity,
	model.EventSwap,
}

// CanDecode checks if the topic0 is supported.
func (d *PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	if name == model.EventPoolCreated {
		decoded, err := d.decodePoolCreated(log)
		if err != nil {
			return nil, err
		}
		meta := model.PoolMeta{
			Token0:      decoded.Token0,
			Token1:      decoded.Token1,
			FeeRate:     decoded.FeeRate,
			TickSpacing: decoded.TickSpacing,
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, meta)
		}
		if ctx.IncludeLiveMeta {
			meta.Liquidity = "0"
			meta.Slot0 = &model.PoolSlot0{SqrtPriceX64: decoded.SqrtPriceX64, Tick: decoded.Tick}
		}
		return buildTypedEvent(log, name, decoded, meta), nil
	}

	poolMeta, err := getPoolMeta(ctx, pool)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case model.EventPositionOpened:
		decoded, err = d.decodePositionOpened(log)
	case model.EventIncreaseLiquidity:
		var change liquidityChange
		change, err = d.decodeLiquidityChange(log, name)
		decoded = model.IncreaseLiquidityEventData(change)
	case model.EventDecreaseLiquidity:
		var change liquidityChange
		change, err = d.decodeLiquidityChange(log, name)
		decoded = model.DecreaseLiquidityEventData(change)
	case model.EventSwap:
		decoded, err = d.decodeSwap(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded, poolMeta), nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "poolcreated", "pool_created":
		return model.EventPoolCreated
	case "positionopened", "position_opened":
		return model.EventPositionOpened
	case "increaseliquidity", "increase_liquidity":
		return model.EventIncreaseLiquidity
	case "decreaseliquidity", "decrease_liquidity":
		return model.EventDecreaseLiquidity
	case "swap":
		return model.EventSwap
	default:
		return ""
	}
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta model.PoolMeta) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		Sequence:  log.Sequence,
		OpHash:    log.OpHash,
		LogIndex:  log.LogIndex,
		Address:   log.Address,
		EventName: name,
		Timestamp: log.Timestamp,
		Decoded:   decoded,
		PoolMeta:  meta,
		Raw:       raw,
	}
}

func (d *PoolDecoder) decodePoolCreated(log model.LogRecord) (model.PoolCreatedEventData, error) {
	event := d.poolABI.Events[model.EventPoolCreated]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.PoolCreatedEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	if len(values) != 6 {
		return model.PoolCreatedEventData{}, fmt.Errorf("unexpected pool created values: %d", len(values))
	}

	feeRate, err := asBigInt(values[0])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	spacing, err := asBigInt(values[1])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	vault0, err := asAddress(values[2])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	vault1, err := asAddress(values[3])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[4])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	tickInt, err := asBigInt(values[5])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}

	return model.PoolCreatedEventData{
		Token0:       indexed.Token0.Hex(),
		Token1:       indexed.Token1.Hex(),
		FeeRate:      uint32(feeRate.Uint64()),
		TickSpacing:  uint16(spacing.Uint64()),
		Vault0:       vault0.Hex(),
		Vault1:       vault1.Hex(),
		SqrtPriceX64: sqrtPrice.String(),
		Tick:         tick,
	}, nil
}

type rangeTopics struct {
	Owner     common.Address
	TickLower *big.Int
	TickUpper *big.Int
}

func (d *PoolDecoder) parseRangeTopics(event abi.Event, log model.LogRecord) (common.Address, int32, int32, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return common.Address{}, 0, 0, err
	}
	var indexed rangeTopics
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return common.Address{}, 0, 0, fmt.Errorf("parse topics: %w", err)
	}
	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return common.Address{}, 0, 0, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return common.Address{}, 0, 0, err
	}
	return indexed.Owner, tickLower, tickUpper, nil
}

func (d *PoolDecoder) decodePositionOpened(log model.LogRecord) (model.PositionOpenedEventData, error) {
	event := d.poolABI.Events[model.EventPositionOpened]
	owner, tickLower, tickUpper, err := d.parseRangeTopics(event, log)
	if err != nil {
		return model.PositionOpenedEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PositionOpenedEventData{}, err
	}
	if len(values) != 1 {
		return model.PositionOpenedEventData{}, fmt.Errorf("unexpected position opened values: %d", len(values))
	}
	position, err := asAddress(values[0])
	if err != nil {
		return model.PositionOpenedEventData{}, err
	}

	return model.PositionOpenedEventData{
		Owner:     owner.Hex(),
		Position:  position.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
	}, nil
}

// liquidityChange shares the field layout of the increase and decrease payloads.
type liquidityChange model.IncreaseLiquidityEventData

func (d *PoolDecoder) decodeLiquidityChange(log model.LogRecord, name string) (liquidityChange, error) {
	event := d.poolABI.Events[name]
	owner, tickLower, tickUpper, err := d.parseRangeTopics(event, log)
	if err != nil {
		return liquidityChange{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return liquidityChange{}, err
	}
	if len(values) != 4 {
		return liquidityChange{}, fmt.Errorf("unexpected %s values: %d", name, len(values))
	}

	position, err := asAddress(values[0])
	if err != nil {
		return liquidityChange{}, err
	}
	liquidity, err := asBigInt(values[1])
	if err != nil {
		return liquidityChange{}, err
	}
	amount0, err := asBigInt(values[2])
	if err != nil {
		return liquidityChange{}, err
	}
	amount1, err := asBigInt(values[3])
	if err != nil {
		return liquidityChange{}, err
	}

	return liquidityChange{
		Position:  position.Hex(),
		Owner:     owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: liquidity.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *PoolDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.poolABI.Events[model.EventSwap]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.SwapEventData{}, err
	}

	var indexed struct {
		Sender common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 7 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	zeroForOne, err := asBool(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amounts := make([]*big.Int, 5)
	for i := range amounts {
		if amounts[i], err = asBigInt(values[i+1]); err != nil {
			return model.SwapEventData{}, err
		}
	}
	tickInt, err := asBigInt(values[6])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:       indexed.Sender.Hex(),
		ZeroForOne:   zeroForOne,
		AmountIn:     amounts[0].String(),
		AmountOut:    amounts[1].String(),
		FeeAmount:    amounts[2].String(),
		SqrtPriceX64: amounts[3].String(),
		Liquidity:    amounts[4].String(),
		Tick:         tick,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
