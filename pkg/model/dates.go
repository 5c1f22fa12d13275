package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day wire format used for availability and bookings.
const DateLayout = "2006-01-02"

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar day by n days.
func AddDays(t time.Time, n int) time.Time {
	return DateOf(t).AddDate(0, 0, n)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IntervalsOverlap is the half-open instant overlap test used for slots:
// a.start < b.end && a.end > b.start.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// OverlapPolicy decides whether two booking date intervals collide.
type OverlapPolicy string

const (
	// OverlapSameDayTurnover treats [start, end) as half-open, so a checkout
	// and a new check-in on the same calendar day do not collide.
	OverlapSameDayTurnover OverlapPolicy = "same_day_turnover"
	// OverlapInclusive treats both ends as occupied days.
	OverlapInclusive OverlapPolicy = "inclusive"
)

func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(s) {
	case OverlapSameDayTurnover, OverlapInclusive:
		return OverlapPolicy(s), nil
	case "":
		return OverlapSameDayTurnover, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", s)
	}
}

func (p OverlapPolicy) Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	aStart, aEnd, bStart, bEnd = DateOf(aStart), DateOf(aEnd), DateOf(bStart), DateOf(bEnd)
	if p == OverlapInclusive {
		return !aStart.After(bEnd) && !aEnd.Before(bStart)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
