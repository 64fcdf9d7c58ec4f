package ticks

import (
	"fmt"

	"clmmCore/internal/model"
)

// SearchOrigin returns the first tick a search from tick examines.
// Moving down the tick itself counts; moving up the search starts one spacing above.
func SearchOrigin(tick int32, spacing uint16, dir model.Direction) int32 {
	origin := FloorToSpacing(tick, spacing)
	if dir == model.OneForZero {
		origin += int32(spacing)
	}
	return origin
}

// FindNextInitializedTick scans page from the search origin of tick in dir.
// When nothing is initialized it returns the last slot in the direction of
// travel with found=false, so the caller can step to the page edge.
func FindNextInitializedTick(page *model.TickArray, tick int32, spacing uint16, dir model.Direction) (int32, int, bool, error) {
	origin := SearchOrigin(tick, spacing, dir)
	start, err := Index(page, origin, spacing)
	if err != nil {
		return 0, 0, false, fmt.Errorf("search origin: %w", err)
	}

	if dir == model.ZeroForOne {
		for i := start; i >= 0; i-- {
			if page.Ticks[i].Initialized {
				return TickAt(page, i, spacing), i, true, nil
			}
		}
		return page.StartTickIndex, 0, false, nil
	}

	for i := start; i < model.TickArraySize; i++ {
		if page.Ticks[i].Initialized {
			return TickAt(page, i, spacing), i, true, nil
		}
	}
	last := model.TickArraySize - 1
	return TickAt(page, last, spacing), last, false, nil
}
