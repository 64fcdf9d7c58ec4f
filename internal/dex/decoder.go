package dex

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"clmmCore/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// PoolLoader resolves pools that were not seen in the journal.
type PoolLoader interface {
	Pool(ctx context.Context, id common.Address) (model.Pool, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context         context.Context
	Pools           PoolLoader
	PoolMetaCache   *PoolMetaCache
	Logger          *zap.Logger
	IncludeLiveMeta bool
}
