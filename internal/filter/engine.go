// Package filter narrows a record store down to the records matching a Spec.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DeafMist/press-radar/internal/records"
)

// View is the set of records matching a Spec, held as ascending canonical
// positions into the store it was computed from.
type View struct {
	positions []int
}

// NewView builds a view from ascending store positions.
func NewView(positions []int) View {
	return View{positions: positions}
}

// Len returns the number of matched records.
func (v View) Len() int {
	return len(v.positions)
}

// Positions returns the matched positions in canonical order. The slice must not be modified.
func (v View) Positions() []int {
	return v.positions
}

// IDs resolves the view to record ids in canonical order.
func (v View) IDs(store *records.Store) []string {
	ids := make([]string, 0, len(v.positions))
	for _, pos := range v.positions {
		ids = append(ids, store.At(pos).ID)
	}
	return ids
}

// Engine applies specs to a store. MaxTextScan bounds how many candidates
// the non-indexed text predicate may scan; zero means unbounded.
type Engine struct {
	MaxTextScan int
}

// Apply is Engine{}.Apply.
func Apply(store *records.Store, spec Spec) (View, error) {
	return Engine{}.Apply(store, spec)
}

// Apply evaluates spec against store. The indexed predicates run first
// (date range by binary search, then source and topic index unions) and the
// text predicate scans only what survives them. A spec matching nothing
// yields an empty view, not an error.
func (e Engine) Apply(store *records.Store, spec Spec) (View, error) {
	if err := spec.Validate(); err != nil {
		return View{}, err
	}
	spec = spec.Normalize()

	lo, hi := 0, store.Len()
	if spec.DateRange != nil {
		from, to := spec.DateRange.Bounds()
		lo, hi = store.Range(from, to)
	}

	var candidates []int
	switch {
	case len(spec.Sources) == 0 && len(spec.Topics) == 0:
		candidates = make([]int, 0, hi-lo)
		for pos := lo; pos < hi; pos++ {
			candidates = append(candidates, pos)
		}
	case len(spec.Topics) == 0:
		candidates = unionWithin(store.SourcePositions, spec.Sources, lo, hi)
	case len(spec.Sources) == 0:
		candidates = unionWithin(store.TopicPositions, spec.Topics, lo, hi)
	default:
		candidates = intersect(
			unionWithin(store.SourcePositions, spec.Sources, lo, hi),
			unionWithin(store.TopicPositions, spec.Topics, lo, hi),
		)
	}

	keywords := Keywords(spec.TextQuery)
	if len(keywords) == 0 {
		return View{positions: candidates}, nil
	}

	if e.MaxTextScan > 0 && len(candidates) > e.MaxTextScan {
		return View{}, &InvalidFilterError{Reason: fmt.Sprintf(
			"text search would scan %d records (limit %d); narrow the date range, sources or topics",
			len(candidates), e.MaxTextScan)}
	}

	matched := candidates[:0]
	for _, pos := range candidates {
		if containsAll(store.At(pos).SearchText(), keywords) {
			matched = append(matched, pos)
		}
	}
	return View{positions: matched}, nil
}

func containsAll(text string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

// unionWithin merges the index lists for keys, restricted to positions in [lo, hi).
func unionWithin(index func(string) []int, keys []string, lo, hi int) []int {
	var merged []int
	for _, key := range keys {
		list := index(key)
		start := sort.SearchInts(list, lo)
		end := sort.SearchInts(list, hi)
		merged = append(merged, list[start:end]...)
	}
	if len(keys) > 1 {
		sort.Ints(merged)
		merged = dedupeSorted(merged)
	}
	if merged == nil {
		merged = []int{}
	}
	return merged
}

func dedupeSorted(xs []int) []int {
	if len(xs) < 2 {
		return xs
	}
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

func intersect(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
