package ticks

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"clmmCore/internal/model"
)

// PageSource loads stored tick pages. found is false when no page was ever written.
type PageSource interface {
	TickArray(ctx context.Context, poolID common.Address, startTickIndex int32) (page model.TickArray, found bool, err error)
}

// Arena holds the working copies of one pool's tick pages for a single operation.
// Each page is loaded at most once, so every caller sees the same mutable view.
type Arena struct {
	source  PageSource
	poolID  common.Address
	spacing uint16
	pages   map[int32]*model.TickArray
	dirty   map[int32]struct{}
}

// NewArena creates an arena over source for the given pool.
func NewArena(source PageSource, poolID common.Address, spacing uint16) *Arena {
	return &Arena{
		source:  source,
		poolID:  poolID,
		spacing: spacing,
		pages:   make(map[int32]*model.TickArray),
		dirty:   make(map[int32]struct{}),
	}
}

// Spacing returns the tick spacing of the pool.
func (a *Arena) Spacing() uint16 { return a.spacing }

// Page returns the page starting at start. Pages that were never stored come back empty.
func (a *Arena) Page(ctx context.Context, start int32) (*model.TickArray, error) {
	if start != StartIndex(start, a.spacing) {
		return nil, fmt.Errorf("%w: %d is not a page start", ErrTickOutOfPage, start)
	}
	if page, ok := a.pages[start]; ok {
		return page, nil
	}
	loaded, found, err := a.source.TickArray(ctx, a.poolID, start)
	if err != nil {
		return nil, fmt.Errorf("load tick array %d: %w", start, err)
	}
	page := &loaded
	if !found {
		page = &model.TickArray{PoolID: a.poolID, StartTickIndex: start}
	}
	a.pages[start] = page
	return page, nil
}

// PageFor returns the page containing tick.
func (a *Arena) PageFor(ctx context.Context, tick int32) (*model.TickArray, error) {
	return a.Page(ctx, StartIndex(tick, a.spacing))
}

// Slot returns the page holding tick and its slot index.
func (a *Arena) Slot(ctx context.Context, tick int32) (*model.TickArray, int, error) {
	page, err := a.PageFor(ctx, tick)
	if err != nil {
		return nil, 0, err
	}
	index, err := Index(page, tick, a.spacing)
	if err != nil {
		return nil, 0, err
	}
	return page, index, nil
}

// MarkDirty records that the page starting at start must be written back.
func (a *Arena) MarkDirty(start int32) {
	a.dirty[start] = struct{}{}
}

// Dirty returns copies of the modified pages ordered by start index.
func (a *Arena) Dirty() []model.TickArray {
	starts := make([]int32, 0, len(a.dirty))
	for start := range a.dirty {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]model.TickArray, 0, len(starts))
	for _, start := range starts {
		out = append(out, *a.pages[start])
	}
	return out
}
