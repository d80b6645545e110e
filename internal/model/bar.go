package model

import (
	"encoding/json"
	"math"
)

// Timeframe labels used in store keys and publish channels.
const (
	TFFine   = "1m"
	TFCoarse = "5m"
)

// Bar is one OHLC record for a symbol/timeframe/time bucket.
// Time is exchange-local epoch seconds (see internal/marketclock for the
// conversion); the indicator fields are nil until the engine has warmed up.
type Bar struct {
	Symbol string  `json:"symbol"`
	TF     string  `json:"tf"`
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`

	EMA21   *float64 `json:"ema21"`
	STValue *float64 `json:"st_value"`
	STDir   *int     `json:"st_dir"` // 1 = up, -1 = down
	STUpper *float64 `json:"st_upper"`
	STLower *float64 `json:"st_lower"`

	// Warmup marks pre-session bars that feed indicator state but are
	// not for display.
	Warmup bool `json:"warmup,omitempty"`
}

// Key returns the store key holding the full bar list for this symbol+TF.
func (b *Bar) Key() string { return "bars:" + b.TF + ":" + b.Symbol }

// Channel returns the publish channel for bar-close events.
func (b *Bar) Channel() string { return "bar:" + b.TF + ":" + b.Symbol }

// TickChannel returns the publish channel for intrabar updates.
func (b *Bar) TickChannel() string { return "bar:" + b.TF + ":tick:" + b.Symbol }

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	buf, _ := json.Marshal(b)
	return buf
}

// Finite reports whether all four price fields are finite numbers.
func (b *Bar) Finite() bool {
	for _, v := range [4]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// PrevDay holds the prior trading day's reference levels for a symbol.
type PrevDay struct {
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// PrevDayKey returns the store key for a symbol's prior-day levels.
func PrevDayKey(symbol string) string { return "prevday:" + symbol }
