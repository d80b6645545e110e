package feed

import (
	"context"
	"testing"
	"time"

	"tickerhub/internal/indicator"
	"tickerhub/internal/marketclock"
	"tickerhub/internal/model"
)

// fakeStore records state-store calls in memory.
type fakeStore struct {
	bars     map[string][]model.Bar // key = tf:symbol
	replaced map[string][]model.Bar
	ticks    []model.Bar
	prevDays map[string]model.PrevDay
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bars:     make(map[string][]model.Bar),
		replaced: make(map[string][]model.Bar),
		prevDays: make(map[string]model.PrevDay),
	}
}

func (f *fakeStore) GetBars(_ context.Context, tf, symbol string) ([]model.Bar, error) {
	return f.bars[tf+":"+symbol], nil
}

func (f *fakeStore) ReplaceBars(_ context.Context, tf, symbol string, bars []model.Bar) error {
	f.replaced[tf+":"+symbol] = bars
	return nil
}

func (f *fakeStore) PublishTick(_ context.Context, bar model.Bar) error {
	f.ticks = append(f.ticks, bar)
	return nil
}

func (f *fakeStore) SetPrevDay(_ context.Context, symbol string, pd model.PrevDay) error {
	f.prevDays[symbol] = pd
	return nil
}

// fakeWriter collects bars written through the pipeline.
type fakeWriter struct {
	written []model.Bar
}

func (f *fakeWriter) WriteBar(bar model.Bar) error {
	f.written = append(f.written, bar)
	return nil
}

func localTS(y int, m time.Month, d, hh, mm int) int64 {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC).Unix()
}

func newTestService(store *fakeStore, writer *fakeWriter) *Service {
	return NewService(store, writer, marketclock.NewYork(), indicator.NewEngine(indicator.Config{}), nil)
}

func TestServiceWritesFineAndTicks(t *testing.T) {
	store := newFakeStore()
	writer := &fakeWriter{}
	svc := newTestService(store, writer)

	ts := localTS(2025, 6, 2, 10, 0)
	if err := svc.ProcessFine(context.Background(), fineBar(ts, 10, 11, 9, 10.5, 100)); err != nil {
		t.Fatalf("ProcessFine: %v", err)
	}

	if len(writer.written) != 1 || writer.written[0].TF != model.TFFine {
		t.Fatalf("written = %+v, want one 1m bar", writer.written)
	}
	if len(store.ticks) != 1 || store.ticks[0].TF != model.TFCoarse {
		t.Fatalf("ticks = %+v, want one in-progress 5m bar", store.ticks)
	}
}

func TestServiceFinalizesCoarseBucket(t *testing.T) {
	store := newFakeStore()
	writer := &fakeWriter{}
	svc := newTestService(store, writer)

	// 10:00 through 10:04 completes the 10:00 bucket.
	for i := 0; i < 5; i++ {
		ts := localTS(2025, 6, 2, 10, i)
		if err := svc.ProcessFine(context.Background(), fineBar(ts, 10, 10+float64(i), 9, 10, 10)); err != nil {
			t.Fatalf("ProcessFine(%d): %v", i, err)
		}
	}

	var coarse []model.Bar
	for _, b := range writer.written {
		if b.TF == model.TFCoarse {
			coarse = append(coarse, b)
		}
	}
	if len(coarse) != 1 {
		t.Fatalf("coarse writes = %d, want 1", len(coarse))
	}
	if coarse[0].Time != localTS(2025, 6, 2, 10, 0) || coarse[0].High != 14 || coarse[0].Volume != 50 {
		t.Fatalf("coarse bar wrong: %+v", coarse[0])
	}
}

func TestServiceMarksWarmupBars(t *testing.T) {
	store := newFakeStore()
	writer := &fakeWriter{}
	svc := newTestService(store, writer)

	pre := localTS(2025, 6, 2, 9, 0) // before the 09:30 open
	if err := svc.ProcessFine(context.Background(), fineBar(pre, 10, 10, 10, 10, 1)); err != nil {
		t.Fatalf("ProcessFine: %v", err)
	}
	if !writer.written[0].Warmup {
		t.Fatalf("pre-open bar not flagged warmup: %+v", writer.written[0])
	}

	open := localTS(2025, 6, 2, 9, 30)
	if err := svc.ProcessFine(context.Background(), fineBar(open, 10, 10, 10, 10, 1)); err != nil {
		t.Fatalf("ProcessFine: %v", err)
	}
	if writer.written[1].Warmup {
		t.Fatalf("session bar flagged warmup: %+v", writer.written[1])
	}
}

func TestServiceDayRolloverWritesPrevDay(t *testing.T) {
	store := newFakeStore()
	writer := &fakeWriter{}
	svc := newTestService(store, writer)

	ctx := context.Background()

	// Monday session: three bars carrying the day's range.
	day1 := []model.Bar{
		fineBar(localTS(2025, 6, 2, 15, 56), 100, 105, 99, 103, 10),
		fineBar(localTS(2025, 6, 2, 15, 57), 103, 108, 102, 107, 10),
		fineBar(localTS(2025, 6, 2, 15, 58), 107, 107, 101, 104, 10),
	}
	for _, b := range day1 {
		if err := svc.ProcessFine(ctx, b); err != nil {
			t.Fatalf("day1 ProcessFine: %v", err)
		}
	}
	if len(store.prevDays) != 0 {
		t.Fatalf("prevday written before rollover: %+v", store.prevDays)
	}

	// First bar of Tuesday triggers the rollover.
	if err := svc.ProcessFine(ctx, fineBar(localTS(2025, 6, 3, 9, 30), 104, 104, 104, 104, 1)); err != nil {
		t.Fatalf("day2 ProcessFine: %v", err)
	}

	pd, ok := store.prevDays["QQQ"]
	if !ok {
		t.Fatalf("prevday not written on rollover")
	}
	if pd.High != 108 || pd.Low != 99 || pd.Close != 104 {
		t.Fatalf("prevday = %+v, want {108 99 104}", pd)
	}

	// The open coarse bucket was flushed before the reset.
	var lastCoarse *model.Bar
	for i := range writer.written {
		if writer.written[i].TF == model.TFCoarse {
			lastCoarse = &writer.written[i]
		}
	}
	if lastCoarse == nil || lastCoarse.Time != localTS(2025, 6, 2, 15, 55) {
		t.Fatalf("open bucket not flushed at rollover: %+v", lastCoarse)
	}
}

func TestServiceRejectsDuplicateTime(t *testing.T) {
	store := newFakeStore()
	writer := &fakeWriter{}
	svc := newTestService(store, writer)

	ts := localTS(2025, 6, 2, 10, 0)
	ctx := context.Background()
	if err := svc.ProcessFine(ctx, fineBar(ts, 10, 10, 10, 10, 1)); err != nil {
		t.Fatalf("first bar: %v", err)
	}
	if err := svc.ProcessFine(ctx, fineBar(ts, 11, 11, 11, 11, 1)); err == nil {
		t.Fatalf("duplicate timestamp accepted")
	}
	if len(writer.written) != 1 {
		t.Fatalf("rejected bar was written: %+v", writer.written)
	}
}

func TestWarmupReplaysStoredDay(t *testing.T) {
	store := newFakeStore()
	writer := &fakeWriter{}
	svc := newTestService(store, writer)

	// Seed the store with bars for today's trading day so Warmup picks
	// them up regardless of when the test runs.
	now := marketclock.NewYork().ToLocal(time.Now())
	base := int64(now) - int64(now)%86400 + 10*3600 // 10:00 local today
	var fine []model.Bar
	for i := int64(0); i < 30; i++ {
		fine = append(fine, fineBar(base+i*60, 10, 10, 10, 10+float64(i)/10, 1))
	}
	store.bars[model.TFFine+":QQQ"] = fine

	if err := svc.Warmup(context.Background(), []string{"QQQ"}); err != nil {
		t.Fatalf("Warmup: %v", err)
	}

	replFine := store.replaced[model.TFFine+":QQQ"]
	if len(replFine) != 30 {
		t.Fatalf("replaced fine = %d bars, want 30", len(replFine))
	}
	// 30 bars is past both warm-up horizons: the tail must be annotated.
	last := replFine[len(replFine)-1]
	if last.STValue == nil || last.EMA21 == nil {
		t.Fatalf("replayed tail not annotated: %+v", last)
	}

	replCoarse := store.replaced[model.TFCoarse+":QQQ"]
	if len(replCoarse) == 0 {
		t.Fatalf("no coarse bars rebuilt from fine replay")
	}

	// Live bar after warmup continues the same state without rejection.
	next := fineBar(base+30*60, 10, 10, 10, 13, 1)
	if err := svc.ProcessFine(context.Background(), next); err != nil {
		t.Fatalf("live bar after warmup rejected: %v", err)
	}
}
