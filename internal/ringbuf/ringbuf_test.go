package ringbuf

import (
	"math"
	"testing"
)

func TestWindowFillAndEvict(t *testing.T) {
	w := NewWindow(3)

	if w.Full() {
		t.Fatal("new window should not be full")
	}

	w.Push(1)
	w.Push(2)
	w.Push(3)

	if !w.Full() {
		t.Fatal("window should be full after 3 pushes")
	}
	if got := w.Sum(); got != 6 {
		t.Fatalf("sum = %v, want 6", got)
	}
	if got := w.Mean(); got != 2 {
		t.Fatalf("mean = %v, want 2", got)
	}

	// Fourth push evicts the oldest sample (1).
	w.Push(10)
	if got := w.Sum(); got != 15 {
		t.Fatalf("sum after evict = %v, want 15", got)
	}
	if got := w.Len(); got != 3 {
		t.Fatalf("len after evict = %d, want 3", got)
	}
}

func TestWindowValuesOrder(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}

	vals := w.Values()
	want := []float64{3, 4, 5}
	if len(vals) != len(want) {
		t.Fatalf("values len = %d, want %d", len(vals), len(want))
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("values[%d] = %v, want %v", i, vals[i], want[i])
		}
	}
}

func TestWindowMeanEmpty(t *testing.T) {
	w := NewWindow(4)
	if got := w.Mean(); got != 0 {
		t.Fatalf("mean of empty window = %v, want 0", got)
	}
}

func TestWindowLongRunSumStable(t *testing.T) {
	w := NewWindow(10)
	for i := 0; i < 10000; i++ {
		w.Push(float64(i%7) + 0.25)
	}

	// Recompute from scratch and compare against the running sum.
	var sum float64
	for _, v := range w.Values() {
		sum += v
	}
	if math.Abs(sum-w.Sum()) > 1e-9 {
		t.Fatalf("running sum drifted: incremental=%v recomputed=%v", w.Sum(), sum)
	}
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(3)
	w.Push(1)
	w.Push(2)
	w.Reset()

	if w.Len() != 0 || w.Sum() != 0 {
		t.Fatalf("reset window: len=%d sum=%v", w.Len(), w.Sum())
	}
}
