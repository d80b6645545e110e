package dist

import (
	"context"
	"sync"

	"tickerhub/internal/marketclock"
	"tickerhub/internal/model"
	"tickerhub/internal/newhigh"
)

// Tracker holds the per-symbol new-high scorer state on the distribution
// side. State is seeded lazily from the store on the first coarse close
// for a symbol, then advanced online with the same fold.
type Tracker struct {
	store Store

	mu     sync.Mutex
	states map[string]newhigh.State
	seeded map[string]bool
}

// NewTracker creates a Tracker backed by the given store.
func NewTracker(store Store) *Tracker {
	return &Tracker{
		store:  store,
		states: make(map[string]newhigh.State),
		seeded: make(map[string]bool),
	}
}

// Update folds one finalized coarse bar into the symbol's state and
// returns the new state. The first call per symbol replays today's
// stored coarse bars up to (not including) this bar.
func (t *Tracker) Update(ctx context.Context, bar model.Bar) (newhigh.State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.seeded[bar.Symbol] {
		s, err := t.seed(ctx, bar)
		if err != nil {
			return newhigh.State{}, err
		}
		t.states[bar.Symbol] = s
		t.seeded[bar.Symbol] = true
	}

	s := newhigh.UpdateBar(t.states[bar.Symbol], bar)
	t.states[bar.Symbol] = s
	return s, nil
}

// seed rebuilds state from today's stored coarse bars older than the
// triggering bar. The triggering bar itself is folded by Update.
func (t *Tracker) seed(ctx context.Context, bar model.Bar) (newhigh.State, error) {
	stored, err := t.store.GetBars(ctx, model.TFCoarse, bar.Symbol)
	if err != nil {
		return newhigh.State{}, err
	}

	today := marketclock.DayKey(marketclock.LocalSeconds(bar.Time))
	var day []model.Bar
	for _, b := range stored {
		if b.Time < bar.Time && marketclock.DayKey(marketclock.LocalSeconds(b.Time)) == today {
			day = append(day, b)
		}
	}
	return newhigh.Replay(day), nil
}

// State returns the current state for a symbol.
func (t *Tracker) State(symbol string) (newhigh.State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[symbol]
	return s, ok
}
