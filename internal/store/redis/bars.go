package redis

import (
	"sort"

	"tickerhub/internal/model"
)

// MaxBars bounds the stored list per symbol+timeframe.
const MaxBars = 500

// DedupSort deduplicates a bar list by timestamp (last write wins) and
// sorts it ascending. Idempotent: applying it to an already sorted unique
// list returns an equal list.
func DedupSort(bars []model.Bar) []model.Bar {
	if len(bars) == 0 {
		return bars
	}

	byTime := make(map[int64]model.Bar, len(bars))
	for _, b := range bars {
		byTime[b.Time] = b
	}

	out := make([]model.Bar, 0, len(byTime))
	for _, b := range byTime {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// Truncate keeps the most recent max bars of an ascending list.
func Truncate(bars []model.Bar, max int) []model.Bar {
	if len(bars) <= max {
		return bars
	}
	return bars[len(bars)-max:]
}
