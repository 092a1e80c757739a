// Package records holds the immutable in-memory table of press releases
// together with the indices the filter engine relies on.
//
// A Store is built once per data refresh by Load and never mutated
// afterwards, so it may be shared freely between goroutines. Positions
// handed out by the store are indexes into its canonical order, which is
// timestamp ascending with input order breaking ties.
package records

import (
	"sort"
	"time"

	"github.com/DeafMist/press-radar/internal/models"
)

// Store is the normalised record table plus its precomputed indices.
type Store struct {
	records  []models.Record
	byID     map[string]int
	bySource map[string][]int
	byTopic  map[string][]int
	sources  []string
	topics   []string
}

// Empty returns a store with no records.
func Empty() *Store {
	return &Store{
		byID:     map[string]int{},
		bySource: map[string][]int{},
		byTopic:  map[string][]int{},
	}
}

// Load validates raw records and builds a store. It fails with *SchemaError
// on the first malformed record and with *DuplicateIDError when two records
// share an id; no partial store is returned in either case.
func Load(raws []models.RawRecord) (*Store, error) {
	parsed := make([]models.Record, 0, len(raws))
	seen := make(map[string]int, len(raws))

	for i, raw := range raws {
		rec, err := ParseRaw(i, raw)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[rec.ID]; dup {
			return nil, &DuplicateIDError{ID: rec.ID, First: first, Second: i}
		}
		seen[rec.ID] = i
		parsed = append(parsed, rec)
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].Timestamp.Before(parsed[j].Timestamp)
	})

	s := &Store{
		records:  parsed,
		byID:     make(map[string]int, len(parsed)),
		bySource: make(map[string][]int),
		byTopic:  make(map[string][]int),
	}

	for pos, rec := range parsed {
		s.byID[rec.ID] = pos
		s.bySource[rec.Source] = append(s.bySource[rec.Source], pos)
		for _, topic := range rec.Topics {
			s.byTopic[topic] = append(s.byTopic[topic], pos)
		}
	}

	s.sources = sortedKeys(s.bySource)
	s.topics = sortedKeys(s.byTopic)
	return s, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// At returns the record at canonical position pos.
func (s *Store) At(pos int) models.Record {
	return s.records[pos]
}

// Position returns the canonical position of id.
func (s *Store) Position(id string) (int, bool) {
	pos, ok := s.byID[id]
	return pos, ok
}

// Lookup returns the records for ids in canonical (timestamp ascending)
// order regardless of the order ids are supplied in. Unknown and repeated
// ids are ignored.
func (s *Store) Lookup(ids []string) []models.Record {
	positions := make([]int, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		pos, ok := s.byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[pos]; dup {
			continue
		}
		seen[pos] = struct{}{}
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	out := make([]models.Record, 0, len(positions))
	for _, pos := range positions {
		out = append(out, s.records[pos])
	}
	return out
}

// ListSources returns the distinct sources, sorted.
func (s *Store) ListSources() []string {
	return append([]string(nil), s.sources...)
}

// ListTopics returns the distinct topics, sorted.
func (s *Store) ListTopics() []string {
	return append([]string(nil), s.topics...)
}

// SourcePositions returns the ascending positions of records from source.
// The returned slice must not be modified.
func (s *Store) SourcePositions(source string) []int {
	return s.bySource[source]
}

// TopicPositions returns the ascending positions of records tagged with topic.
// The returned slice must not be modified.
func (s *Store) TopicPositions(topic string) []int {
	return s.byTopic[topic]
}

// Range returns the half-open position interval [lo, hi) of records whose
// timestamp t satisfies from <= t < to. A zero from or to leaves that side open.
func (s *Store) Range(from, to time.Time) (int, int) {
	lo, hi := 0, len(s.records)
	if !from.IsZero() {
		lo = sort.Search(len(s.records), func(i int) bool {
			return !s.records[i].Timestamp.Before(from)
		})
	}
	if !to.IsZero() {
		hi = sort.Search(len(s.records), func(i int) bool {
			return !s.records[i].Timestamp.Before(to)
		})
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Span returns the earliest and latest timestamps in the store.
func (s *Store) Span() (time.Time, time.Time, bool) {
	if len(s.records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.records[0].Timestamp, s.records[len(s.records)-1].Timestamp, true
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
