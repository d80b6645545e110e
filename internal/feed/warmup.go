package feed

import (
	"context"
	"log"
	"time"

	"tickerhub/internal/marketclock"
	"tickerhub/internal/model"
)

// Warmup rebuilds in-memory state from the store before live bars flow.
// For each symbol it re-reads the current trading day's stored bars,
// folds them through fresh indicator state, reseeds the open coarse
// bucket and day stats, and writes the re-annotated lists back. The
// replay is bounded by the store's rolling window, so startup cost is
// constant.
func (s *Service) Warmup(ctx context.Context, symbols []string) error {
	today := marketclock.DayKey(s.clock.ToLocal(time.Now()))

	for _, sym := range symbols {
		fine, err := s.store.GetBars(ctx, model.TFFine, sym)
		if err != nil {
			return err
		}
		coarse, err := s.store.GetBars(ctx, model.TFCoarse, sym)
		if err != nil {
			return err
		}

		fine = filterDay(fine, today)
		coarse = filterDay(coarse, today)

		s.engine.ResetSymbol(sym)
		delete(s.days, sym)

		// Coarse state first so re-finalized buckets from the fine fold
		// are recognized as already covered.
		coarseOut := make([]model.Bar, 0, len(coarse))
		for _, b := range coarse {
			ann, err := s.engine.Update(b)
			if err != nil {
				continue
			}
			coarseOut = append(coarseOut, ann)
		}

		fineOut := make([]model.Bar, 0, len(fine))
		for _, b := range fine {
			ann, err := s.engine.Update(b)
			if err != nil {
				continue
			}
			fineOut = append(fineOut, ann)
			s.trackDay(ann)

			_, finalized := s.agg.Update(ann)
			for _, cb := range finalized {
				// Only buckets the stored coarse list was missing pass the
				// monotonic check.
				if cann, err := s.engine.Update(cb); err == nil {
					coarseOut = append(coarseOut, cann)
				}
			}
		}

		if err := s.store.ReplaceBars(ctx, model.TFFine, sym, fineOut); err != nil {
			return err
		}
		if err := s.store.ReplaceBars(ctx, model.TFCoarse, sym, coarseOut); err != nil {
			return err
		}

		log.Printf("[feed] warmup %s: replayed %d fine / %d coarse bars for %s", sym, len(fineOut), len(coarseOut), today)
	}
	return nil
}

// filterDay keeps only the bars belonging to one trading-day key.
func filterDay(bars []model.Bar, dayKey string) []model.Bar {
	out := bars[:0:0]
	for _, b := range bars {
		if marketclock.DayKey(marketclock.LocalSeconds(b.Time)) == dayKey {
			out = append(out, b)
		}
	}
	return out
}
