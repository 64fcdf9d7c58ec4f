package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"clmmCore/internal/model"
	"clmmCore/internal/storage"
)

var (
	poolPrefix     = []byte("pool/")
	positionPrefix = []byte("posn/")
	tickPrefix     = []byte("tick/")
)

// Store persists engine state in an embedded badger database.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens (or creates) a database at dir. An empty dir keeps everything in memory.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func poolKey(id common.Address) []byte {
	return append(append([]byte{}, poolPrefix...), id.Bytes()...)
}

func positionKey(id common.Address) []byte {
	return append(append([]byte{}, positionPrefix...), id.Bytes()...)
}

// tickKey orders pages of one pool by start index: the sign bit is flipped so
// big-endian bytes sort like the signed value.
func tickKey(pool common.Address, start int32) []byte {
	key := append(append([]byte{}, tickPrefix...), pool.Bytes()...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(start)^(1<<31))
	return append(key, idx[:]...)
}

func (s *Store) get(ctx context.Context, key []byte, out interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	return found, err
}

func (s *Store) Pool(ctx context.Context, id common.Address) (model.Pool, error) {
	var rec storage.PoolRecord
	found, err := s.get(ctx, poolKey(id), &rec)
	if err != nil {
		return model.Pool{}, fmt.Errorf("load pool %s: %w", id.Hex(), err)
	}
	if !found {
		return model.Pool{}, fmt.Errorf("pool %s: %w", id.Hex(), storage.ErrNotFound)
	}
	return storage.DecodePool(rec)
}

func (s *Store) Position(ctx context.Context, id common.Address) (model.Position, error) {
	var rec storage.PositionRecord
	found, err := s.get(ctx, positionKey(id), &rec)
	if err != nil {
		return model.Position{}, fmt.Errorf("load position %s: %w", id.Hex(), err)
	}
	if !found {
		return model.Position{}, fmt.Errorf("position %s: %w", id.Hex(), storage.ErrNotFound)
	}
	return storage.DecodePosition(rec)
}

func (s *Store) TickArray(ctx context.Context, poolID common.Address, startTickIndex int32) (model.TickArray, bool, error) {
	var rec storage.TickArrayRecord
	found, err := s.get(ctx, tickKey(poolID, startTickIndex), &rec)
	if err != nil || !found {
		if err != nil {
			err = fmt.Errorf("load tick array %d: %w", startTickIndex, err)
		}
		return model.TickArray{}, false, err
	}
	ta, err := storage.DecodeTickArray(rec)
	if err != nil {
		return model.TickArray{}, false, err
	}
	return ta, true, nil
}

// Commit writes the change set in a single badger transaction.
func (s *Store) Commit(ctx context.Context, changes storage.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, p := range changes.Pools {
			if err := setJSON(txn, poolKey(p.ID), storage.EncodePool(p)); err != nil {
				return err
			}
		}
		for _, p := range changes.Positions {
			if err := setJSON(txn, positionKey(p.ID), storage.EncodePosition(p)); err != nil {
				return err
			}
		}
		for _, ta := range changes.TickArrays {
			if err := setJSON(txn, tickKey(ta.PoolID, ta.StartTickIndex), storage.EncodeTickArray(ta)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit changes: %w", err)
	}
	s.logger.Debug("committed",
		zap.Int("pools", len(changes.Pools)),
		zap.Int("positions", len(changes.Positions)),
		zap.Int("tick_arrays", len(changes.TickArrays)),
	)
	return nil
}

// TickArrays returns the stored pages of a pool in ascending start order.
func (s *Store) TickArrays(ctx context.Context, poolID common.Address) ([]model.TickArray, error) {
	prefix := append(append([]byte{}, tickPrefix...), poolID.Bytes()...)
	var out []model.TickArray
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec storage.TickArrayRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			ta, err := storage.DecodeTickArray(rec)
			if err != nil {
				return err
			}
			out = append(out, ta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tick arrays: %w", err)
	}
	return out, nil
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, val)
}
