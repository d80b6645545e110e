package feed

import (
	"tickerhub/internal/model"
)

// bucketSeconds is the coarse timeframe width.
const bucketSeconds = 300

// bucketState holds the in-progress coarse bar for one symbol.
type bucketState struct {
	bucket int64 // bucket start, time - time%300
	bar    model.Bar
}

// Aggregator folds finalized minute bars into 5-minute buckets. It is
// driven synchronously by the pipeline goroutine and holds one open
// bucket per symbol.
type Aggregator struct {
	states map[string]*bucketState
}

// NewAggregator creates an Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{states: make(map[string]*bucketState)}
}

// Update merges one finalized minute bar into its symbol's open bucket.
// It returns the in-progress coarse bar after the merge, plus any coarse
// bars finalized by this update: the previous bucket when the minute bar
// opens a new one, and the current bucket when the minute bar is its last
// slot. The two cases can combine after a feed gap.
func (a *Aggregator) Update(fine model.Bar) (partial model.Bar, finalized []model.Bar) {
	bucket := fine.Time - fine.Time%bucketSeconds

	st := a.states[fine.Symbol]
	if st != nil && bucket < st.bucket {
		// Late bar from an already-finalized bucket; the indicator stage
		// rejects these upstream, so just hold the current state.
		return st.bar, nil
	}
	if st != nil && bucket > st.bucket {
		finalized = append(finalized, st.bar)
		delete(a.states, fine.Symbol)
		st = nil
	}

	if st == nil {
		st = &bucketState{
			bucket: bucket,
			bar: model.Bar{
				Symbol: fine.Symbol,
				TF:     model.TFCoarse,
				Time:   bucket,
				Open:   fine.Open,
				High:   fine.High,
				Low:    fine.Low,
				Close:  fine.Close,
				Volume: fine.Volume,
				Warmup: fine.Warmup,
			},
		}
		a.states[fine.Symbol] = st
	} else {
		b := &st.bar
		if fine.High > b.High {
			b.High = fine.High
		}
		if fine.Low < b.Low {
			b.Low = fine.Low
		}
		b.Close = fine.Close
		b.Volume += fine.Volume
	}

	partial = st.bar

	if fine.Time%bucketSeconds == bucketSeconds-60 {
		// Last minute of the bucket — no need to wait for the next bar.
		finalized = append(finalized, st.bar)
		delete(a.states, fine.Symbol)
	}

	return partial, finalized
}

// Flush finalizes and returns the open bucket for a symbol, or nil if
// none is open. Used at the day rollover.
func (a *Aggregator) Flush(symbol string) *model.Bar {
	st, ok := a.states[symbol]
	if !ok {
		return nil
	}
	delete(a.states, symbol)
	bar := st.bar
	return &bar
}
