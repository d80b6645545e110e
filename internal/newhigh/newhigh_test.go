package newhigh

import (
	"testing"

	"tickerhub/internal/model"
)

func TestUpdateStreak(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   int
	}{
		{"strictly increasing", []float64{100, 101, 102}, 3},
		{"single bar", []float64{100}, 1},
		{"lower close clears", []float64{100, 101, 102, 101}, 0},
		{"equal close clears", []float64{100, 101, 101}, 0},
		{"recovers after clear", []float64{100, 99, 101, 102}, 2},
		{"flat then below high", []float64{100, 99, 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s State
			for _, c := range tt.closes {
				s = Update(s, "2025-06-02", c)
			}
			if s.Count != tt.want {
				t.Fatalf("count = %d, want %d", s.Count, tt.want)
			}
		})
	}
}

func TestUpdateRunningHighHeldThroughClear(t *testing.T) {
	var s State
	s = Update(s, "2025-06-02", 100)
	s = Update(s, "2025-06-02", 105)
	s = Update(s, "2025-06-02", 101)

	if s.Count != 0 {
		t.Fatalf("count = %d, want 0", s.Count)
	}
	// The day high stays at 105: only a close above it restarts the streak.
	s = Update(s, "2025-06-02", 104)
	if s.Count != 0 {
		t.Fatalf("count = %d after close below day high, want 0", s.Count)
	}
	s = Update(s, "2025-06-02", 106)
	if s.Count != 1 {
		t.Fatalf("count = %d after new day high, want 1", s.Count)
	}
}

func TestUpdateDayBoundaryResets(t *testing.T) {
	var s State
	s = Update(s, "2025-06-02", 100)
	s = Update(s, "2025-06-02", 101)

	// New day resets regardless of price, even a lower one.
	s = Update(s, "2025-06-03", 50)
	if s.Count != 1 || s.RunningHigh != 50 {
		t.Fatalf("after day change: count=%d high=%v, want 1/50", s.Count, s.RunningHigh)
	}
}

func TestReplayMatchesOnline(t *testing.T) {
	bars := []model.Bar{
		{Symbol: "QQQ", TF: model.TFCoarse, Time: 1748870100, Close: 100},
		{Symbol: "QQQ", TF: model.TFCoarse, Time: 1748870400, Close: 101},
		{Symbol: "QQQ", TF: model.TFCoarse, Time: 1748870700, Close: 100.5},
		{Symbol: "QQQ", TF: model.TFCoarse, Time: 1748871000, Close: 102},
		{Symbol: "QQQ", TF: model.TFCoarse, Time: 1748871300, Close: 103},
	}

	var online State
	for _, b := range bars {
		online = UpdateBar(online, b)
	}

	replayed := Replay(bars)
	if online != replayed {
		t.Fatalf("replay diverged: online=%+v replayed=%+v", online, replayed)
	}
	if replayed.Count != 2 {
		t.Fatalf("count = %d, want 2", replayed.Count)
	}
}

func TestReplayEmptyHistory(t *testing.T) {
	s := Replay(nil)
	if s != (State{}) {
		t.Fatalf("replay of empty history = %+v, want zero state", s)
	}
}
