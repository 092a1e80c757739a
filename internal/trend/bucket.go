package trend

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the calendar width of a trend bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity accepts day, week or month (case insensitive).
func ParseGranularity(raw string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(raw))); g {
	case Day, Week, Month:
		return g, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", raw)
	}
}

// GroupBy selects the dimension a series is broken down by.
type GroupBy string

const (
	GroupNone   GroupBy = "none"
	GroupSource GroupBy = "source"
	GroupTopic  GroupBy = "topic"
)

// ParseGroupBy accepts none, source or topic. An empty value means none.
func ParseGroupBy(raw string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(raw))); g {
	case "", GroupNone:
		return GroupNone, nil
	case GroupSource, GroupTopic:
		return g, nil
	default:
		return "", fmt.Errorf("unknown group %q", raw)
	}
}

// BucketStart returns the start of the calendar bucket containing t (UTC).
// Weeks start on Monday; months on the first day of the month.
func BucketStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Week:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// NextBucket returns the start of the bucket following the one starting at start.
func NextBucket(start time.Time, g Granularity) time.Time {
	switch g {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// BucketCount returns how many buckets of g a series covering first through
// last (inclusive) holds. It is zero when last precedes first.
func BucketCount(first, last time.Time, g Granularity) int {
	a, b := BucketStart(first, g), BucketStart(last, g)
	if b.Before(a) {
		return 0
	}
	switch g {
	case Week:
		return int((b.Unix()-a.Unix())/(7*86400)) + 1
	case Month:
		return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month()) + 1
	default:
		return int((b.Unix()-a.Unix())/86400) + 1
	}
}
