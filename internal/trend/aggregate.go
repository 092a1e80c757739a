// Package trend turns a filtered view into calendar-bucketed counts and
// per-group frequency tables.
//
// Topic grouping fans out: a record tagged with several topics adds one to
// every one of its topics, so per-topic counts in a bucket may sum to more
// than the bucket total. Records without topics count towards the total only.
package trend

import (
	"time"

	"github.com/DeafMist/press-radar/internal/filter"
	"github.com/DeafMist/press-radar/internal/models"
	"github.com/DeafMist/press-radar/internal/records"
)

// Bucket is one calendar interval of a series.
type Bucket struct {
	Start   time.Time      `json:"bucketStart"`
	Count   int            `json:"count"`
	ByGroup map[string]int `json:"byGroup,omitempty"`
}

// Series is a gap-free, ascending sequence of buckets.
type Series struct {
	Granularity Granularity `json:"granularity"`
	GroupBy     GroupBy     `json:"groupBy"`
	Buckets     []Bucket    `json:"buckets"`
	// Groups lists every group key present, by total count descending then first appearance.
	Groups []string `json:"groups,omitempty"`
}

// Options control Aggregate. Range, when set, fixes the span the buckets
// cover; open sides fall back to the view's own first and last record.
type Options struct {
	Granularity Granularity
	GroupBy     GroupBy
	Range       *filter.DateRange
}

// Aggregate buckets the records of view. An empty view yields a series
// with no buckets. Every record of the view lands in exactly one bucket,
// so bucket counts always sum to view.Len().
func Aggregate(store *records.Store, view filter.View, opts Options) Series {
	series := Series{Granularity: opts.Granularity, GroupBy: opts.GroupBy, Buckets: []Bucket{}}
	if series.Granularity == "" {
		series.Granularity = Day
	}
	if series.GroupBy == "" {
		series.GroupBy = GroupNone
	}

	positions := view.Positions()
	if len(positions) == 0 {
		return series
	}

	first := store.At(positions[0]).Timestamp
	last := store.At(positions[len(positions)-1]).Timestamp
	if opts.Range != nil {
		from, to := opts.Range.Bounds()
		if !from.IsZero() && from.Before(first) {
			first = from
		}
		if !to.IsZero() {
			if end := to.Add(-time.Nanosecond); end.After(last) {
				last = end
			}
		}
	}

	g := series.Granularity
	for start := BucketStart(first, g); !start.After(last); start = NextBucket(start, g) {
		b := Bucket{Start: start}
		if series.GroupBy != GroupNone {
			b.ByGroup = map[string]int{}
		}
		series.Buckets = append(series.Buckets, b)
	}

	groups := newTally()
	idx := 0
	for _, pos := range positions {
		rec := store.At(pos)
		for idx+1 < len(series.Buckets) && !rec.Timestamp.Before(series.Buckets[idx+1].Start) {
			idx++
		}
		b := &series.Buckets[idx]
		b.Count++
		for _, key := range groupKeys(rec, series.GroupBy) {
			b.ByGroup[key]++
			groups.add(key)
		}
	}

	if series.GroupBy != GroupNone {
		for _, gc := range groups.ranked() {
			series.Groups = append(series.Groups, gc.Key)
		}
	}
	return series
}

func groupKeys(rec models.Record, by GroupBy) []string {
	switch by {
	case GroupSource:
		return []string{rec.Source}
	case GroupTopic:
		return rec.Topics
	default:
		return nil
	}
}
