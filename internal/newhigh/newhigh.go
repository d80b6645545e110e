// Package newhigh scores consecutive strictly-higher closes within one
// trading day. The same update function runs online and during recovery
// replay so the two paths cannot drift.
package newhigh

import (
	"tickerhub/internal/marketclock"
	"tickerhub/internal/model"
)

// State is the per-symbol scorer state. The zero value means "no bar of
// the current day seen yet".
type State struct {
	DayKey      string  `json:"day_key"`
	RunningHigh float64 `json:"running_high"`
	Count       int     `json:"count"`
}

// Update folds one close into the state. A day-key change resets the
// streak to 1 at the new close. Within a day, only a strictly greater
// close raises the high and extends the streak; an equal or lower close
// clears it.
func Update(s State, dayKey string, close float64) State {
	if dayKey != s.DayKey {
		return State{DayKey: dayKey, RunningHigh: close, Count: 1}
	}
	if close > s.RunningHigh {
		s.RunningHigh = close
		s.Count++
		return s
	}
	s.Count = 0
	return s
}

// UpdateBar folds one coarse bar into the state using its exchange-local
// timestamp for the day key.
func UpdateBar(s State, bar model.Bar) State {
	return Update(s, marketclock.DayKey(marketclock.LocalSeconds(bar.Time)), bar.Close)
}

// Replay reconstructs the state by folding a day's bars in time order.
// Bars must already be deduplicated and sorted ascending.
func Replay(bars []model.Bar) State {
	var s State
	for _, b := range bars {
		s = UpdateBar(s, b)
	}
	return s
}
