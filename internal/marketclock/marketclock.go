// Package marketclock provides the exchange trading calendar and the
// "exchange-local seconds" timestamp type used on every stored bar.
//
// Internally all timing is real UTC. LocalSeconds exists only so that
// charting consumers see exchange wall-clock time without timezone-aware
// rendering; the conversion is explicit and confined to this package.
package marketclock

import (
	"fmt"
	"time"

	"github.com/scmhub/calendar"
)

// Regular session bounds, exchange wall clock.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

// LocalSeconds is an exchange-local wall-clock timestamp encoded as epoch
// seconds, i.e. the wall time read as if it were UTC. It is NOT a real
// Unix timestamp.
type LocalSeconds int64

// Clock wraps a DST-aware exchange calendar.
type Clock struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewYork returns a Clock for the NYSE calendar. Falls back to a plain
// America/New_York location if the calendar cannot be loaded.
func NewYork() *Clock {
	cal := calendar.GetCalendar("xnys")
	if cal != nil {
		return &Clock{cal: cal, loc: cal.Loc}
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Location returns the exchange time zone.
func (c *Clock) Location() *time.Location { return c.loc }

// ToLocal converts a real UTC instant to exchange-local seconds.
func (c *Clock) ToLocal(t time.Time) LocalSeconds {
	lt := t.In(c.loc)
	return LocalSeconds(time.Date(lt.Year(), lt.Month(), lt.Day(),
		lt.Hour(), lt.Minute(), lt.Second(), 0, time.UTC).Unix())
}

// FromLocal converts exchange-local seconds back to a real instant.
func (c *Clock) FromLocal(ls LocalSeconds) time.Time {
	wall := time.Unix(int64(ls), 0).UTC()
	return time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), 0, c.loc)
}

// DayKey returns the trading-day key ("2025-01-31") for a local timestamp.
func DayKey(ls LocalSeconds) string {
	wall := time.Unix(int64(ls), 0).UTC()
	return fmt.Sprintf("%04d-%02d-%02d", wall.Year(), wall.Month(), wall.Day())
}

// IsTradingDay reports whether t falls on an exchange business day.
func (c *Clock) IsTradingDay(t time.Time) bool {
	lt := t.In(c.loc)
	if c.cal != nil {
		return c.cal.IsBusinessDay(lt)
	}
	wd := lt.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsRegularSession reports whether t is inside regular trading hours.
func (c *Clock) IsRegularSession(t time.Time) bool {
	if c.cal != nil {
		return c.cal.IsOpen(t.In(c.loc))
	}
	lt := t.In(c.loc)
	if !c.IsTradingDay(lt) {
		return false
	}
	hm := lt.Hour()*60 + lt.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWarmup reports whether a local bar timestamp is pre-session on a
// trading day. Warm-up bars feed indicator state but are not for display.
func (c *Clock) IsWarmup(ls LocalSeconds) bool {
	wall := time.Unix(int64(ls), 0).UTC()
	hm := wall.Hour()*60 + wall.Minute()
	return hm < OpenHour*60+OpenMinute
}

// SessionOpen returns the regular-session open instant for t's trading day.
func (c *Clock) SessionOpen(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), OpenHour, OpenMinute, 0, 0, c.loc)
}

// SessionClose returns the regular-session close instant for t's trading day.
func (c *Clock) SessionClose(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), CloseHour, CloseMinute, 0, 0, c.loc)
}

// StatusString returns a human-readable market status for dashboards.
func (c *Clock) StatusString(t time.Time) string {
	if c.IsRegularSession(t) {
		d := c.SessionClose(t).Sub(t)
		if d < 0 {
			d = 0
		}
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(d))
	}
	return "Market Closed"
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
