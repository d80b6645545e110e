package indicator

import (
	"math"

	"tickerhub/internal/ringbuf"
)

// SuperTrend is the sticky-band trend indicator, updated one bar at a time.
//
// ATR is the arithmetic mean of a fixed true-range window. Candidate bands
// sit at hl2 ± mult·ATR; a band only resets when the candidate tightens it
// or the previous close crossed it, which is what keeps the stop from
// moving against price inside a trend.
type SuperTrend struct {
	mult float64
	tr   *ringbuf.Window

	prevClose float64
	prevUpper float64
	prevLower float64
	prevDir   int
	seen      bool // at least one bar consumed
	banded    bool // bands initialized on first full window
}

// STResult is the annotated output of one SuperTrend update.
type STResult struct {
	Value float64
	Dir   int // 1 = up, -1 = down
	Upper float64
	Lower float64
}

// NewSuperTrend creates a SuperTrend with the given true-range window
// length and band multiplier.
func NewSuperTrend(period int, mult float64) *SuperTrend {
	return &SuperTrend{
		mult:    mult,
		tr:      ringbuf.NewWindow(period),
		prevDir: 1,
	}
}

// Ready reports whether the true-range window has filled.
func (s *SuperTrend) Ready() bool { return s.tr.Full() }

// Update consumes one bar. ok is false while the window is warming up; the
// bar still advances internal state.
func (s *SuperTrend) Update(high, low, close float64) (res STResult, ok bool) {
	tr := high - low
	if s.seen {
		tr = math.Max(tr, math.Max(
			math.Abs(high-s.prevClose),
			math.Abs(low-s.prevClose)))
	}
	s.tr.Push(tr)
	s.seen = true

	if !s.tr.Full() {
		s.prevClose = close
		return STResult{Dir: s.prevDir}, false
	}

	atr := s.tr.Mean()
	hl2 := (high + low) / 2
	basicUpper := hl2 + s.mult*atr
	basicLower := hl2 - s.mult*atr

	var upper, lower float64
	if !s.banded {
		upper = basicUpper
		lower = basicLower
		s.banded = true
	} else {
		// Sticky bands: upper may only move down, lower only up, unless
		// the previous close crossed the band.
		upper = s.prevUpper
		if basicUpper < s.prevUpper || s.prevClose > s.prevUpper {
			upper = basicUpper
		}
		lower = s.prevLower
		if basicLower > s.prevLower || s.prevClose < s.prevLower {
			lower = basicLower
		}
	}

	dir := s.prevDir
	if s.prevDir == -1 && close > upper {
		dir = 1
	} else if s.prevDir == 1 && close < lower {
		dir = -1
	}

	val := lower
	if dir == -1 {
		val = upper
	}

	s.prevClose = close
	s.prevUpper = upper
	s.prevLower = lower
	s.prevDir = dir

	return STResult{Value: val, Dir: dir, Upper: upper, Lower: lower}, true
}
