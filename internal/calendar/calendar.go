// Package calendar answers whether an instant is valid for automated customer
// contact under a tenant's locale calendar: working days, working hours,
// holidays and recurring quiet periods such as prayer-time blocks.
package calendar

import "time"

// Window is a half-open daily interval [Start, End) in minutes since local
// midnight.
type Window struct {
	Start int
	End   int
}

// Contains reports whether the minute-of-day falls inside the window.
func (w Window) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// Config describes one tenant's contact calendar. The zero value means
// "always eligible": unrecognized or missing configuration must never block
// processing.
type Config struct {
	WorkingDays  []time.Weekday
	WorkStart    int // minutes since midnight, inclusive
	WorkEnd      int // minutes since midnight, exclusive
	Holidays     []time.Time
	QuietPeriods map[time.Weekday][]Window
	Daily        []Window // quiet windows applying every working day
	Location     *time.Location
}

// UAEDefault returns the stock configuration for UAE tenants: Monday-Friday
// working week, 09:00-18:00 window, and the Friday midday prayer block.
func UAEDefault() Config {
	loc, err := time.LoadLocation("Asia/Dubai")
	if err != nil {
		loc = time.FixedZone("GST", 4*60*60)
	}
	return Config{
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkStart:   9 * 60,
		WorkEnd:     18 * 60,
		QuietPeriods: map[time.Weekday][]Window{
			time.Friday: {{Start: 12 * 60, End: 13*60 + 30}},
		},
		Location: loc,
	}
}

// IsZero reports whether the config carries no restrictions.
func (c Config) IsZero() bool {
	return len(c.WorkingDays) == 0 && c.WorkStart == 0 && c.WorkEnd == 0 &&
		len(c.Holidays) == 0 && len(c.QuietPeriods) == 0 && len(c.Daily) == 0
}

func (c Config) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

func (c Config) workingDay(d time.Weekday) bool {
	if len(c.WorkingDays) == 0 {
		return true
	}
	for _, wd := range c.WorkingDays {
		if wd == d {
			return true
		}
	}
	return false
}

func (c Config) holiday(t time.Time) bool {
	y, m, d := t.Date()
	for _, h := range c.Holidays {
		hy, hm, hd := h.In(c.location()).Date()
		if y == hy && m == hm && d == hd {
			return true
		}
	}
	return false
}

// quietUntil returns the latest End among quiet windows covering the minute,
// or -1 when the minute is clear.
func (c Config) quietUntil(day time.Weekday, minute int) int {
	until := -1
	for _, w := range c.QuietPeriods[day] {
		if w.Contains(minute) && w.End > until {
			until = w.End
		}
	}
	for _, w := range c.Daily {
		if w.Contains(minute) && w.End > until {
			until = w.End
		}
	}
	return until
}

// Eligible reports whether t is a valid instant for automated contact. Pure
// function of (t, cfg); a zero config is always eligible.
func Eligible(t time.Time, cfg Config) bool {
	if cfg.IsZero() {
		return true
	}
	local := t.In(cfg.location())
	if !cfg.workingDay(local.Weekday()) || cfg.holiday(local) {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	if cfg.WorkEnd > cfg.WorkStart {
		if minute < cfg.WorkStart || minute >= cfg.WorkEnd {
			return false
		}
	}
	return cfg.quietUntil(local.Weekday(), minute) < 0
}

// maxScanDays bounds the NextEligible search to one calendar cycle. A config
// whose every day is blocked falls through to the input unchanged.
const maxScanDays = 366

// NextEligible returns the least instant >= t that is eligible. Idempotent on
// already-eligible input. Sub-minute precision is dropped when the instant
// has to move.
func NextEligible(t time.Time, cfg Config) time.Time {
	if Eligible(t, cfg) {
		return t
	}
	local := t.In(cfg.location())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, cfg.location())
	minute := local.Hour()*60 + local.Minute()
	if local.Second() > 0 || local.Nanosecond() > 0 {
		minute++
	}

	for i := 0; i < maxScanDays; i++ {
		if i > 0 {
			day = day.AddDate(0, 0, 1)
			minute = 0
		}
		if !cfg.workingDay(day.Weekday()) || cfg.holiday(day) {
			continue
		}
		if minute < cfg.WorkStart {
			minute = cfg.WorkStart
		}
		// Skip chained quiet windows until a clear minute or end of day.
		for {
			until := cfg.quietUntil(day.Weekday(), minute)
			if until < 0 {
				break
			}
			minute = until
		}
		if cfg.WorkEnd > cfg.WorkStart && minute >= cfg.WorkEnd {
			continue
		}
		candidate := day.Add(time.Duration(minute) * time.Minute)
		if Eligible(candidate, cfg) {
			return candidate
		}
	}
	return t
}
