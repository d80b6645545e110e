package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"tickerhub/internal/model"
)

// BarAppender is the store surface the writer needs.
type BarAppender interface {
	AppendBar(ctx context.Context, bar model.Bar) error
}

// BufferedWriter wraps store bar writes with a circuit breaker. While the
// circuit is open, writes are buffered locally and replayed when the
// store becomes reachable again, so the feed engine never crashes on
// store unavailability.
//
// AppendBar is a read-modify-write cycle on the stored list, so replay
// and live writes must never interleave: storeMu serializes every call.
type BufferedWriter struct {
	store BarAppender
	cb    *CircuitBreaker
	ctx   context.Context

	storeMu sync.Mutex

	mu       sync.Mutex
	buffer   []model.Bar
	maxBuf   int
	flushing bool

	// Callbacks (optional, for metrics)
	OnBuffer func()
	OnFlush  func(count int)
	OnError  func()
	OnWrite  func(d time.Duration)
}

// NewBufferedWriter creates a BufferedWriter around the given store.
func NewBufferedWriter(ctx context.Context, s BarAppender, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bw := &BufferedWriter{
		store:  s,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]model.Bar, 0, 256),
		maxBuf: maxBufferSize,
	}

	// Flush buffered writes whenever the circuit closes again.
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// WriteBar writes a finalized bar through the circuit breaker. If the
// circuit is open the bar is buffered locally, not lost.
func (bw *BufferedWriter) WriteBar(bar model.Bar) error {
	start := time.Now()
	err := bw.cb.Execute(func() error {
		return bw.appendSerialized(bar)
	})
	if err == nil {
		if bw.OnWrite != nil {
			bw.OnWrite(time.Since(start))
		}
		return nil
	}
	if err == ErrCircuitOpen {
		bw.bufferBar(bar)
		return nil
	}

	log.Printf("[store] bar write error for %s %s t=%d: %v", bar.Symbol, bar.TF, bar.Time, err)
	if bw.OnError != nil {
		bw.OnError()
	}
	// Buffer failed writes too; AppendBar is idempotent on replay.
	bw.bufferBar(bar)
	return err
}

func (bw *BufferedWriter) bufferBar(bar model.Bar) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuf {
		// Buffer full — drop oldest
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, bar)

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

func (bw *BufferedWriter) appendSerialized(bar model.Bar) error {
	bw.storeMu.Lock()
	defer bw.storeMu.Unlock()
	return bw.store.AppendBar(bw.ctx, bar)
}

// flush replays all buffered bars through the store in arrival order.
// Single-flight: repeated circuit-close transitions while a replay is
// running do not spawn a second one.
func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if bw.flushing || len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	bw.flushing = true
	toFlush := bw.buffer
	bw.buffer = make([]model.Bar, 0, 256)
	bw.mu.Unlock()

	flushed := 0
	for _, bar := range toFlush {
		if err := bw.appendSerialized(bar); err != nil {
			log.Printf("[store] flush write error: %v", err)
			bw.bufferBar(bar)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		flushed++
	}

	bw.mu.Lock()
	bw.flushing = false
	bw.mu.Unlock()

	log.Printf("[store] flushed %d buffered bar writes", flushed)
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered writes waiting for flush.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}
