package feed

import (
	"context"
	"log"

	"tickerhub/internal/indicator"
	"tickerhub/internal/marketclock"
	"tickerhub/internal/model"
)

// BarWriter persists a finalized bar into the shared state store and
// publishes its close event. Satisfied by redis.BufferedWriter.
type BarWriter interface {
	WriteBar(bar model.Bar) error
}

// StateStore is the subset of the shared state store the pipeline needs
// beyond buffered bar writes.
type StateStore interface {
	GetBars(ctx context.Context, tf, symbol string) ([]model.Bar, error)
	ReplaceBars(ctx context.Context, tf, symbol string, bars []model.Bar) error
	PublishTick(ctx context.Context, bar model.Bar) error
	SetPrevDay(ctx context.Context, symbol string, pd model.PrevDay) error
}

// dayStats tracks the running high/low/close of the current trading day
// for one symbol, the source of the next day's prevday document.
type dayStats struct {
	dayKey string
	high   float64
	low    float64
	close  float64
}

// Service is the feed pipeline: validate, annotate, aggregate, persist.
// Single goroutine; drive it with Run.
type Service struct {
	store  StateStore
	writer BarWriter
	clock  *marketclock.Clock
	engine *indicator.Engine
	agg    *Aggregator

	days map[string]*dayStats

	// journalCh receives every finalized annotated bar for the SQLite
	// journal. Optional; sends never block.
	journalCh chan<- model.Bar

	// Metrics hooks (optional)
	OnIngested func()
	OnRejected func()
	OnCoarse   func()
}

// NewService creates the pipeline service.
func NewService(store StateStore, writer BarWriter, clock *marketclock.Clock, engine *indicator.Engine, journalCh chan<- model.Bar) *Service {
	return &Service{
		store:     store,
		writer:    writer,
		clock:     clock,
		engine:    engine,
		agg:       NewAggregator(),
		days:      make(map[string]*dayStats),
		journalCh: journalCh,
	}
}

// Run consumes minute bars from barCh until ctx is cancelled or the
// channel closes.
func (s *Service) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			if err := s.ProcessFine(ctx, bar); err != nil {
				log.Printf("[feed] bar rejected: %v", err)
			}
		}
	}
}

// ProcessFine runs one finalized minute bar through the full pipeline:
// day-rollover bookkeeping, indicator annotation, store write + publish,
// coarse aggregation, and the intrabar coarse tick.
func (s *Service) ProcessFine(ctx context.Context, bar model.Bar) error {
	bar.TF = model.TFFine
	bar.Warmup = s.clock.IsWarmup(marketclock.LocalSeconds(bar.Time))

	s.rollDay(ctx, bar)

	annotated, err := s.engine.Update(bar)
	if err != nil {
		if s.OnRejected != nil {
			s.OnRejected()
		}
		return err
	}
	if s.OnIngested != nil {
		s.OnIngested()
	}

	s.persist(annotated)
	s.trackDay(annotated)

	partial, finalized := s.agg.Update(annotated)
	for _, coarse := range finalized {
		s.finalizeCoarse(coarse)
	}
	if err := s.store.PublishTick(ctx, partial); err != nil {
		log.Printf("[feed] tick publish error: %v", err)
	}
	return nil
}

// finalizeCoarse annotates and persists a completed coarse bar.
func (s *Service) finalizeCoarse(coarse model.Bar) {
	annotated, err := s.engine.Update(coarse)
	if err != nil {
		// Replayed bucket already covered by the warm-up fold.
		return
	}
	s.persist(annotated)
	if s.OnCoarse != nil {
		s.OnCoarse()
	}
}

func (s *Service) persist(bar model.Bar) {
	if err := s.writer.WriteBar(bar); err != nil {
		log.Printf("[feed] store write error for %s %s: %v", bar.Symbol, bar.TF, err)
	}
	if s.journalCh != nil {
		select {
		case s.journalCh <- bar:
		default:
			log.Printf("[feed] journal channel full, dropping %s %s t=%d", bar.Symbol, bar.TF, bar.Time)
		}
	}
}

// rollDay finalizes the previous trading day for a symbol when the day
// key changes: the open coarse bucket is flushed and the completed day's
// high/low/close are written as the prevday reference document, then the
// indicator state restarts for the new day.
func (s *Service) rollDay(ctx context.Context, bar model.Bar) {
	dk := marketclock.DayKey(marketclock.LocalSeconds(bar.Time))
	ds, ok := s.days[bar.Symbol]
	if !ok || ds.dayKey == dk {
		return
	}

	if open := s.agg.Flush(bar.Symbol); open != nil {
		s.finalizeCoarse(*open)
	}

	pd := model.PrevDay{High: ds.high, Low: ds.low, Close: ds.close}
	if err := s.store.SetPrevDay(ctx, bar.Symbol, pd); err != nil {
		log.Printf("[feed] prevday write error for %s: %v", bar.Symbol, err)
	} else {
		log.Printf("[feed] day rollover %s: %s -> %s prevday=%+v", bar.Symbol, ds.dayKey, dk, pd)
	}

	s.engine.ResetSymbol(bar.Symbol)
	delete(s.days, bar.Symbol)
}

// trackDay folds a minute bar into the running day stats.
func (s *Service) trackDay(bar model.Bar) {
	dk := marketclock.DayKey(marketclock.LocalSeconds(bar.Time))
	ds, ok := s.days[bar.Symbol]
	if !ok {
		s.days[bar.Symbol] = &dayStats{dayKey: dk, high: bar.High, low: bar.Low, close: bar.Close}
		return
	}
	if bar.High > ds.high {
		ds.high = bar.High
	}
	if bar.Low < ds.low {
		ds.low = bar.Low
	}
	ds.close = bar.Close
}
