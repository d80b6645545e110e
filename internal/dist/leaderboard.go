package dist

import (
	"context"
	"math"
	"sort"

	"tickerhub/internal/marketclock"
	"tickerhub/internal/model"
	"tickerhub/internal/newhigh"
	"tickerhub/internal/store/redis"
)

// LeaderboardRow is one symbol's scoreboard entry.
type LeaderboardRow struct {
	Symbol       string  `json:"symbol"`
	Streak       int     `json:"streak"`
	CoarseStreak int     `json:"coarse_streak"`
	Deviation    float64 `json:"deviation"`
	NewHigh      int     `json:"new_high"`
}

// BuildLeaderboard computes one row per configured symbol from stored
// bars and sorts descending by the minute-bar trend streak. Ties keep
// the configured symbol order.
func BuildLeaderboard(ctx context.Context, store Store, symbols []string) ([]LeaderboardRow, error) {
	rows := make([]LeaderboardRow, 0, len(symbols))

	for _, sym := range symbols {
		fine, err := store.GetBars(ctx, model.TFFine, sym)
		if err != nil {
			return nil, err
		}
		coarse, err := store.GetBars(ctx, model.TFCoarse, sym)
		if err != nil {
			return nil, err
		}
		fine = redis.DedupSort(fine)
		coarse = redis.DedupSort(coarse)

		rows = append(rows, LeaderboardRow{
			Symbol:       sym,
			Streak:       trendStreak(fine),
			CoarseStreak: trendStreak(coarse),
			Deviation:    deviation(coarse),
			NewHigh:      todayNewHigh(coarse),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Streak > rows[j].Streak
	})
	return rows, nil
}

// trendStreak is the signed length of the consecutive same-direction
// tail: +n after n bars trending up, -n after n bars trending down, 0
// when the latest bar has no trend yet.
func trendStreak(bars []model.Bar) int {
	if len(bars) == 0 {
		return 0
	}
	last := bars[len(bars)-1]
	if last.STDir == nil {
		return 0
	}
	dir := *last.STDir

	n := 0
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].STDir == nil || *bars[i].STDir != dir {
			break
		}
		n++
	}
	return n * dir
}

// deviation is the latest coarse close's distance from its moving
// average in ATR units: (close - ema21) / ATR(10). Zero when the average
// or the range window is not available yet.
func deviation(coarse []model.Bar) float64 {
	if len(coarse) == 0 {
		return 0
	}
	last := coarse[len(coarse)-1]
	if last.EMA21 == nil {
		return 0
	}

	atr := meanTrueRange(coarse, 10)
	if atr <= 0 {
		return 0
	}
	return math.Round((last.Close-*last.EMA21)/atr*10000) / 10000
}

// meanTrueRange recomputes the arithmetic-mean ATR over the last n true
// ranges of an ascending bar list. Returns 0 with fewer than n ranges.
func meanTrueRange(bars []model.Bar, n int) float64 {
	if len(bars) < n+1 {
		return 0
	}
	sum := 0.0
	for i := len(bars) - n; i < len(bars); i++ {
		h, l, pc := bars[i].High, bars[i].Low, bars[i-1].Close
		tr := h - l
		if d := math.Abs(h - pc); d > tr {
			tr = d
		}
		if d := math.Abs(l - pc); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(n)
}

// todayNewHigh replays the current day's coarse closes through the
// scorer. The day is taken from the latest stored bar so the endpoint
// agrees with the stream without consulting the wall clock.
func todayNewHigh(coarse []model.Bar) int {
	if len(coarse) == 0 {
		return 0
	}
	today := marketclock.DayKey(marketclock.LocalSeconds(coarse[len(coarse)-1].Time))
	var day []model.Bar
	for _, b := range coarse {
		if marketclock.DayKey(marketclock.LocalSeconds(b.Time)) == today {
			day = append(day, b)
		}
	}
	return newhigh.Replay(day).Count
}
