package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// InvalidFilterError rejects a Spec before any record is scanned.
type InvalidFilterError struct {
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return "invalid filter: " + e.Reason
}

// DateRange is an inclusive range of calendar days (UTC). A zero Start or
// End leaves that side of the range open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Bounds returns the half-open instant interval [from, to) covered by the range.
func (r DateRange) Bounds() (time.Time, time.Time) {
	var from, to time.Time
	if !r.Start.IsZero() {
		from = Day(r.Start)
	}
	if !r.End.IsZero() {
		to = Day(r.End).AddDate(0, 0, 1)
	}
	return from, to
}

// Day truncates t to midnight of its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Spec selects records. Empty fields place no constraint on their
// dimension. Dimensions are combined with AND, values within Sources or
// Topics with OR.
type Spec struct {
	DateRange *DateRange `json:"dateRange,omitempty"`
	Sources   []string   `json:"sources,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	TextQuery string     `json:"textQuery,omitempty"`
}

// Validate checks the spec for contradictions.
func (s Spec) Validate() error {
	if s.DateRange == nil {
		return nil
	}
	if !s.DateRange.Start.IsZero() && !s.DateRange.End.IsZero() &&
		Day(s.DateRange.Start).After(Day(s.DateRange.End)) {
		return &InvalidFilterError{Reason: fmt.Sprintf("start date %s is after end date %s",
			s.DateRange.Start.Format(time.DateOnly), s.DateRange.End.Format(time.DateOnly))}
	}
	return nil
}

// Normalize returns an equivalent spec with trimmed, de-duplicated and
// sorted value sets, a lower-cased text query, and day-aligned dates.
// Two specs selecting the same records by construction normalise equally.
func (s Spec) Normalize() Spec {
	out := Spec{
		Sources:   normaliseSet(s.Sources),
		Topics:    normaliseSet(s.Topics),
		TextQuery: strings.Join(Keywords(s.TextQuery), " "),
	}
	if s.DateRange != nil && (!s.DateRange.Start.IsZero() || !s.DateRange.End.IsZero()) {
		r := DateRange{}
		if !s.DateRange.Start.IsZero() {
			r.Start = Day(s.DateRange.Start)
		}
		if !s.DateRange.End.IsZero() {
			r.End = Day(s.DateRange.End)
		}
		out.DateRange = &r
	}
	return out
}

// Keywords splits a text query into lower-cased whitespace separated keywords.
func Keywords(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func normaliseSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
