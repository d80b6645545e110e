package marketclock

import (
	"testing"
	"time"
)

func TestLocalSecondsRoundTrip(t *testing.T) {
	c := NewYork()

	// 2025-06-02 14:30:00 UTC = 10:30 New York (EDT).
	utc := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	ls := c.ToLocal(utc)

	wall := time.Unix(int64(ls), 0).UTC()
	if wall.Hour() != 10 || wall.Minute() != 30 {
		t.Fatalf("local wall clock = %02d:%02d, want 10:30", wall.Hour(), wall.Minute())
	}

	back := c.FromLocal(ls)
	if !back.Equal(utc) {
		t.Fatalf("round trip: %v != %v", back, utc)
	}
}

func TestLocalSecondsDSTOffset(t *testing.T) {
	c := NewYork()

	// Same UTC wall hour in winter and summer maps to different local hours.
	winter := c.ToLocal(time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC))
	summer := c.ToLocal(time.Date(2025, 7, 15, 15, 0, 0, 0, time.UTC))

	wHour := time.Unix(int64(winter), 0).UTC().Hour()
	sHour := time.Unix(int64(summer), 0).UTC().Hour()
	if wHour != 10 {
		t.Fatalf("winter local hour = %d, want 10 (EST)", wHour)
	}
	if sHour != 11 {
		t.Fatalf("summer local hour = %d, want 11 (EDT)", sHour)
	}
}

func TestDayKey(t *testing.T) {
	c := NewYork()

	// 2025-06-03 01:00 UTC is still 2025-06-02 in New York.
	ls := c.ToLocal(time.Date(2025, 6, 3, 1, 0, 0, 0, time.UTC))
	if got := DayKey(ls); got != "2025-06-02" {
		t.Fatalf("day key = %q, want 2025-06-02", got)
	}
}

func TestIsTradingDay(t *testing.T) {
	c := NewYork()

	if !c.IsTradingDay(time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)) {
		t.Fatal("Monday 2025-06-02 should be a trading day")
	}
	if c.IsTradingDay(time.Date(2025, 6, 7, 15, 0, 0, 0, time.UTC)) {
		t.Fatal("Saturday should not be a trading day")
	}
	if c.IsTradingDay(time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC)) {
		t.Fatal("Independence Day should not be a trading day")
	}
}

func TestIsWarmup(t *testing.T) {
	c := NewYork()

	pre := c.ToLocal(time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)) // 09:00 NY
	if !c.IsWarmup(pre) {
		t.Fatal("09:00 local should be warmup")
	}
	open := c.ToLocal(time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)) // 09:30 NY
	if c.IsWarmup(open) {
		t.Fatal("09:30 local should not be warmup")
	}
}
