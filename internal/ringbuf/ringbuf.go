// Package ringbuf provides a fixed-capacity rolling window of float64
// samples with O(1) push and a running sum. It backs the true-range
// window of the trend indicator.
package ringbuf

// Window is a rolling sample window. Once full, each push evicts the
// oldest sample. Not safe for concurrent use.
type Window struct {
	buf  []float64
	head int
	n    int
	sum  float64
}

// NewWindow creates a window holding up to capacity samples.
// Minimum capacity is 1.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest when the window is full.
func (w *Window) Push(v float64) {
	if w.n == len(w.buf) {
		w.sum -= w.buf[w.head]
	} else {
		w.n++
	}
	w.buf[w.head] = v
	w.sum += v
	w.head = (w.head + 1) % len(w.buf)
}

// Full reports whether the window has reached capacity.
func (w *Window) Full() bool { return w.n == len(w.buf) }

// Len returns the current number of samples.
func (w *Window) Len() int { return w.n }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Sum returns the running sum of the window.
func (w *Window) Sum() float64 { return w.sum }

// Mean returns the arithmetic mean of the window. Zero when empty.
func (w *Window) Mean() float64 {
	if w.n == 0 {
		return 0
	}
	return w.sum / float64(w.n)
}

// Values returns the samples oldest-first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.n)
	start := w.head - w.n
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < w.n; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

// Reset clears the window for reuse.
func (w *Window) Reset() {
	w.head = 0
	w.n = 0
	w.sum = 0
}
