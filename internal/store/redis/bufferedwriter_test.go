package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tickerhub/internal/model"
)

// recordingStore detects interleaved AppendBar calls. AppendBar is a
// read-modify-write cycle on the real store, so two in-flight calls for
// the same symbol can lose a bar.
type recordingStore struct {
	mu       sync.Mutex
	bars     []model.Bar
	inFlight int32
	overlap  int32
}

func (s *recordingStore) AppendBar(_ context.Context, bar model.Bar) error {
	if atomic.AddInt32(&s.inFlight, 1) > 1 {
		atomic.StoreInt32(&s.overlap, 1)
	}
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	s.bars = append(s.bars, bar)
	s.mu.Unlock()
	atomic.AddInt32(&s.inFlight, -1)
	return nil
}

func testBar(ts int64) model.Bar {
	return model.Bar{Symbol: "QQQ", TF: model.TFFine, Time: ts, Close: 100}
}

func TestBufferedWriterReplayDoesNotInterleaveLiveWrites(t *testing.T) {
	store := &recordingStore{}
	cb := NewCircuitBreaker(5, time.Second)
	bw := NewBufferedWriter(context.Background(), store, cb, 100)

	for i := 0; i < 10; i++ {
		bw.bufferBar(testBar(int64(i * 60)))
	}

	done := make(chan struct{})
	go func() {
		bw.flush()
		close(done)
	}()
	for i := 10; i < 20; i++ {
		if err := bw.WriteBar(testBar(int64(i * 60))); err != nil {
			t.Fatalf("WriteBar: %v", err)
		}
	}
	<-done

	if atomic.LoadInt32(&store.overlap) != 0 {
		t.Fatal("replay ran concurrently with a live write")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.bars) != 20 {
		t.Fatalf("stored %d bars, want 20", len(store.bars))
	}
	seen := make(map[int64]bool)
	for _, b := range store.bars {
		if seen[b.Time] {
			t.Fatalf("bar t=%d written twice", b.Time)
		}
		seen[b.Time] = true
	}
}

func TestBufferedWriterFlushIsSingleFlight(t *testing.T) {
	store := &recordingStore{}
	cb := NewCircuitBreaker(5, time.Second)
	bw := NewBufferedWriter(context.Background(), store, cb, 100)

	for i := 0; i < 5; i++ {
		bw.bufferBar(testBar(int64(i * 60)))
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bw.flush()
		}()
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.bars) != 5 {
		t.Fatalf("stored %d bars, want 5 (no double replay)", len(store.bars))
	}
	if bw.PendingCount() != 0 {
		t.Fatalf("pending = %d after flush", bw.PendingCount())
	}
}
