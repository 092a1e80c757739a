package trend

import (
	"sort"

	"github.com/DeafMist/press-radar/internal/filter"
	"github.com/DeafMist/press-radar/internal/records"
)

// GroupCount is one row of a frequency table.
type GroupCount struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// FrequencyOptions trim a frequency table. TopN <= 0 keeps every row;
// rows below MinCount are dropped.
type FrequencyOptions struct {
	TopN     int
	MinCount int
}

// Frequencies counts how many records of view carry each source or topic.
// Rows are sorted by count descending, ties by first appearance in the
// view's canonical order. Share is relative to the number of records in the
// view, so topic shares can add up to more than one.
func Frequencies(store *records.Store, view filter.View, dim GroupBy, opts FrequencyOptions) []GroupCount {
	if dim != GroupSource && dim != GroupTopic {
		return nil
	}

	t := newTally()
	for _, pos := range view.Positions() {
		for _, key := range groupKeys(store.At(pos), dim) {
			t.add(key)
		}
	}

	rows := make([]GroupCount, 0, len(t.order))
	for _, gc := range t.ranked() {
		if gc.Count < opts.MinCount {
			continue
		}
		gc.Share = float64(gc.Count) / float64(view.Len())
		rows = append(rows, gc)
	}
	if opts.TopN > 0 && len(rows) > opts.TopN {
		rows = rows[:opts.TopN]
	}
	return rows
}

// tally counts keys and remembers the order they were first seen in.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: map[string]int{}}
}

func (t *tally) add(key string) {
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key]++
}

func (t *tally) ranked() []GroupCount {
	rows := make([]GroupCount, 0, len(t.order))
	for _, key := range t.order {
		rows = append(rows, GroupCount{Key: key, Count: t.counts[key]})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Count > rows[j].Count
	})
	return rows
}
