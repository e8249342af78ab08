package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func workweek() Config {
	return Config{
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkStart:   9 * 60,
		WorkEnd:     18 * 60,
		QuietPeriods: map[time.Weekday][]Window{
			time.Friday: {{Start: 12 * 60, End: 13*60 + 30}},
		},
		Location: time.UTC,
	}
}

func TestZeroConfigAlwaysEligible(t *testing.T) {
	at := time.Date(2026, 3, 7, 3, 0, 0, 0, time.UTC) // Saturday, 03:00
	require.True(t, Eligible(at, Config{}))
	require.Equal(t, at, NextEligible(at, Config{}))
}

func TestEligibleInsideWorkingWindow(t *testing.T) {
	cfg := workweek()
	// Tuesday 10:30
	require.True(t, Eligible(time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC), cfg))
	// Tuesday 08:59 is before the window
	require.False(t, Eligible(time.Date(2026, 3, 3, 8, 59, 0, 0, time.UTC), cfg))
	// Tuesday 18:00 is past the window (exclusive end)
	require.False(t, Eligible(time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC), cfg))
	// Saturday is not a working day
	require.False(t, Eligible(time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC), cfg))
}

func TestQuietPeriodBlocksFridayPrayer(t *testing.T) {
	cfg := workweek()
	friday := time.Date(2026, 3, 6, 12, 30, 0, 0, time.UTC)
	require.False(t, Eligible(friday, cfg))

	next := NextEligible(friday, cfg)
	require.Equal(t, time.Date(2026, 3, 6, 13, 30, 0, 0, time.UTC), next)
	require.True(t, Eligible(next, cfg))
}

func TestHolidayDefersToNextWorkingDay(t *testing.T) {
	cfg := workweek()
	cfg.Holidays = []time.Time{time.Date(2026, 12, 2, 0, 0, 0, 0, time.UTC)} // National Day, a Wednesday

	at := time.Date(2026, 12, 2, 10, 0, 0, 0, time.UTC)
	require.False(t, Eligible(at, cfg))

	next := NextEligible(at, cfg)
	require.Equal(t, time.Date(2026, 12, 3, 9, 0, 0, 0, time.UTC), next)
}

func TestNextEligibleIdempotent(t *testing.T) {
	cfg := workweek()
	at := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	require.Equal(t, at, NextEligible(at, cfg))
	require.Equal(t, NextEligible(at, cfg), NextEligible(NextEligible(at, cfg), cfg))
}

func TestNextEligibleSkipsWeekend(t *testing.T) {
	cfg := workweek()
	// Friday 17:30 + a late evening timestamp rolls over the weekend.
	at := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)
	next := NextEligible(at, cfg)
	require.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), next) // Monday 09:00
}

func TestNextEligibleIsLeastEligibleInstant(t *testing.T) {
	cfg := workweek()
	at := time.Date(2026, 3, 3, 7, 15, 0, 0, time.UTC)
	next := NextEligible(at, cfg)
	require.True(t, Eligible(next, cfg))
	require.False(t, next.Before(at))
	// One minute earlier must not be eligible.
	require.False(t, Eligible(next.Add(-time.Minute), cfg))
}

func TestDailyQuietWindow(t *testing.T) {
	cfg := workweek()
	cfg.Daily = []Window{{Start: 13 * 60, End: 14 * 60}}

	at := time.Date(2026, 3, 4, 13, 10, 0, 0, time.UTC)
	require.False(t, Eligible(at, cfg))
	require.Equal(t, time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC), NextEligible(at, cfg))
}

func TestFullyBlockedCalendarFallsBack(t *testing.T) {
	cfg := Config{
		WorkingDays: []time.Weekday{time.Monday},
		WorkStart:   9 * 60,
		WorkEnd:     10 * 60,
		Daily:       []Window{{Start: 0, End: 24 * 60}},
		Location:    time.UTC,
	}
	at := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)
	require.Equal(t, at, NextEligible(at, cfg))
}
