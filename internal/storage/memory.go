package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"clmmCore/internal/model"
)

type pageKey struct {
	pool  common.Address
	start int32
}

// MemoryStore keeps engine state in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	pools     map[common.Address]model.Pool
	positions map[common.Address]model.Position
	pages     map[pageKey]model.TickArray
	commits   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:     make(map[common.Address]model.Pool),
		positions: make(map[common.Address]model.Position),
		pages:     make(map[pageKey]model.TickArray),
	}
}

func (s *MemoryStore) Pool(ctx context.Context, id common.Address) (model.Pool, error) {
	if err := ctx.Err(); err != nil {
		return model.Pool{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[id]
	if !ok {
		return model.Pool{}, fmt.Errorf("pool %s: %w", id.Hex(), ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) Position(ctx context.Context, id common.Address) (model.Position, error) {
	if err := ctx.Err(); err != nil {
		return model.Position{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return model.Position{}, fmt.Errorf("position %s: %w", id.Hex(), ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) TickArray(ctx context.Context, poolID common.Address, startTickIndex int32) (model.TickArray, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.TickArray{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ta, ok := s.pages[pageKey{pool: poolID, start: startTickIndex}]
	return ta, ok, nil
}

// Commit applies the whole change set under one lock.
func (s *MemoryStore) Commit(ctx context.Context, changes ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range changes.Pools {
		s.pools[p.ID] = p
	}
	for _, p := range changes.Positions {
		s.positions[p.ID] = p
	}
	for _, ta := range changes.TickArrays {
		s.pages[pageKey{pool: ta.PoolID, start: ta.StartTickIndex}] = ta
	}
	s.commits++
	return nil
}

// Commits reports how many change sets were applied.
func (s *MemoryStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// TickArrays returns the stored pages of a pool ordered by start index.
func (s *MemoryStore) TickArrays(poolID common.Address) []model.TickArray {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TickArray
	for key, ta := range s.pages {
		if key.pool == poolID {
			out = append(out, ta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTickIndex < out[j].StartTickIndex })
	return out
}
