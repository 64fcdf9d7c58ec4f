package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"clmmCore/internal/model"
)

// ErrNotFound is returned by loaders for records that were never committed.
var ErrNotFound = errors.New("not found")

// LogSink receives encoded engine events.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}

// ChangeSet holds every record one engine operation writes.
type ChangeSet struct {
	Pools      []model.Pool
	Positions  []model.Position
	TickArrays []model.TickArray
}

// Empty reports whether the change set writes nothing.
func (c ChangeSet) Empty() bool {
	return len(c.Pools) == 0 && len(c.Positions) == 0 && len(c.TickArrays) == 0
}

// Store loads engine state and commits change sets atomically.
type Store interface {
	Pool(ctx context.Context, id common.Address) (model.Pool, error)
	Position(ctx context.Context, id common.Address) (model.Position, error)
	TickArray(ctx context.Context, poolID common.Address, startTickIndex int32) (model.TickArray, bool, error)
	Commit(ctx context.Context, changes ChangeSet) error
}
