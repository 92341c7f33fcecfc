package aggregation

import (
	"time"

	"HeadlineRadar/internal/domain"
)

// Policy decides where the reporting window starts for a given cycle.
type Policy struct {
	Mode     domain.WindowMode
	Location *time.Location
}

// Cutoff returns the earliest instant still belonging to the window that a
// cycle at cycleAt reports on.
//
//	current      the cycle itself
//	incremental  just after the last successful report
//	daily        local midnight of the cycle's day
func (p Policy) Cutoff(cycleAt, lastReportAt time.Time) time.Time {
	switch p.Mode {
	case domain.ModeCurrent:
		return cycleAt
	case domain.ModeIncremental:
		if lastReportAt.IsZero() {
			return time.Time{}
		}
		return lastReportAt.Add(time.Nanosecond)
	default:
		loc := p.Location
		if loc == nil {
			loc = time.UTC
		}
		y, m, d := cycleAt.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// Expired reports whether a window opened at openedAt must roll over before
// accepting a cycle at cycleAt.
func (p Policy) Expired(openedAt, lastReportAt, cycleAt time.Time) bool {
	if openedAt.IsZero() {
		return false
	}
	return openedAt.Before(p.Cutoff(cycleAt, lastReportAt))
}
