package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"clmmCore/internal/model"
)

// PoolMetaCache caches pool metadata by address.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Len reports the number of cached pools.
func (c *PoolMetaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func getPoolMeta(ctx DecodeContext, pool common.Address) (model.PoolMeta, error) {
	var meta model.PoolMeta
	var ok bool
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}
	if ok && !ctx.IncludeLiveMeta {
		return meta, nil
	}
	if ctx.Pools == nil {
		if ok {
			return meta, nil
		}
		return model.PoolMeta{}, fmt.Errorf("unknown pool %s", pool.Hex())
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}
	p, err := ctx.Pools.Pool(callCtx, pool)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("load pool meta: %w", err)
	}
	if !ok && ctx.PoolMetaCache != nil {
		ctx.PoolMetaCache.Set(pool, model.MetaOf(p, false))
	}
	return model.MetaOf(p, ctx.IncludeLiveMeta), nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asBool(value interface{}) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("unsupported bool type %T", value)
	}
	return v, nil
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
