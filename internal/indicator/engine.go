package indicator

import (
	"errors"
	"fmt"
	"math"

	"tickerhub/internal/model"
)

// Default indicator parameters.
const (
	DefaultSTPeriod  = 10
	DefaultSTMult    = 2.0
	DefaultEMAPeriod = 21
)

// ErrBadBar is returned for malformed bars (non-finite price or
// non-monotonic time). State is never mutated in that case.
var ErrBadBar = errors.New("bad bar")

// Config holds the indicator parameters for an Engine.
type Config struct {
	STPeriod  int
	STMult    float64
	EMAPeriod int
}

func (c *Config) applyDefaults() {
	if c.STPeriod <= 0 {
		c.STPeriod = DefaultSTPeriod
	}
	if c.STMult <= 0 {
		c.STMult = DefaultSTMult
	}
	if c.EMAPeriod <= 0 {
		c.EMAPeriod = DefaultEMAPeriod
	}
}

// symbolState is the running state for one symbol+timeframe.
type symbolState struct {
	st       *SuperTrend
	ema      *EMA
	lastTime int64
}

// Engine owns the per symbol+timeframe indicator state records and
// annotates bars one at a time. Not safe for concurrent use; run one
// engine per pipeline goroutine.
type Engine struct {
	cfg    Config
	states map[string]*symbolState
}

// NewEngine creates an Engine with the given indicator parameters.
func NewEngine(cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:    cfg,
		states: make(map[string]*symbolState),
	}
}

// Update consumes one finalized bar and returns it with trend and
// moving-average fields filled in. Malformed bars are rejected with
// ErrBadBar and do not advance any state.
func (e *Engine) Update(bar model.Bar) (model.Bar, error) {
	if !bar.Finite() {
		return bar, fmt.Errorf("%w: non-finite price for %s %s t=%d", ErrBadBar, bar.Symbol, bar.TF, bar.Time)
	}

	key := bar.Symbol + "|" + bar.TF
	st, exists := e.states[key]
	if exists && bar.Time <= st.lastTime {
		return bar, fmt.Errorf("%w: non-monotonic time %d <= %d for %s %s", ErrBadBar, bar.Time, st.lastTime, bar.Symbol, bar.TF)
	}
	if !exists {
		st = &symbolState{
			st:  NewSuperTrend(e.cfg.STPeriod, e.cfg.STMult),
			ema: NewEMA(e.cfg.EMAPeriod),
		}
		e.states[key] = st
	}

	res, ok := st.st.Update(bar.High, bar.Low, bar.Close)
	st.ema.Update(bar.Close)
	st.lastTime = bar.Time

	if ok {
		val := round4(res.Value)
		dir := res.Dir
		upper := round4(res.Upper)
		lower := round4(res.Lower)
		bar.STValue = &val
		bar.STDir = &dir
		bar.STUpper = &upper
		bar.STLower = &lower
	}
	if st.ema.Ready() {
		ema := round4(st.ema.Value())
		bar.EMA21 = &ema
	}

	return bar, nil
}

// Reset drops all state records. Used before a warm-up replay so the
// replayed history rebuilds state from scratch.
func (e *Engine) Reset() {
	e.states = make(map[string]*symbolState)
}

// ResetSymbol drops the state records for one symbol across all
// timeframes. Used at the trading-day rollover.
func (e *Engine) ResetSymbol(symbol string) {
	for key := range e.states {
		if len(key) > len(symbol) && key[:len(symbol)] == symbol && key[len(symbol)] == '|' {
			delete(e.states, key)
		}
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
