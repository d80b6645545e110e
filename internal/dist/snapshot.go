package dist

import (
	"context"
	"errors"

	"tickerhub/internal/model"
	"tickerhub/internal/store/redis"
)

// ErrNoData is returned when a symbol has no bars in either timeframe.
var ErrNoData = errors.New("no data")

// Snapshot is the composite REST view of one symbol.
type Snapshot struct {
	Symbol     string          `json:"symbol"`
	BarsFine   []model.Bar     `json:"bars_fine"`
	BarsCoarse []model.Bar     `json:"bars_coarse"`
	Position   *model.Position `json:"position,omitempty"`
	PrevDay    *model.PrevDay  `json:"prevDay,omitempty"`
}

// BuildSnapshot composes the snapshot from the store. Bar lists are
// deduplicated, sorted, and truncated server-side so a reader never sees
// an inconsistent list even if a writer bug let one through.
func BuildSnapshot(ctx context.Context, store Store, symbol string) (*Snapshot, error) {
	fine, err := store.GetBars(ctx, model.TFFine, symbol)
	if err != nil {
		return nil, err
	}
	coarse, err := store.GetBars(ctx, model.TFCoarse, symbol)
	if err != nil {
		return nil, err
	}

	if len(fine) == 0 && len(coarse) == 0 {
		return nil, ErrNoData
	}

	snap := &Snapshot{
		Symbol:     symbol,
		BarsFine:   redis.Truncate(redis.DedupSort(fine), redis.MaxBars),
		BarsCoarse: redis.Truncate(redis.DedupSort(coarse), redis.MaxBars),
	}

	pos, err := store.GetPosition(ctx, symbol)
	if err != nil && !errors.Is(err, redis.ErrNotFound) {
		return nil, err
	}
	if pos != nil && !pos.Closed && len(snap.BarsFine) > 0 {
		pos.MarkToMarket(snap.BarsFine[len(snap.BarsFine)-1].Close)
	}
	snap.Position = pos

	pd, err := store.GetPrevDay(ctx, symbol)
	if err != nil && !errors.Is(err, redis.ErrNotFound) {
		return nil, err
	}
	snap.PrevDay = pd

	return snap, nil
}
