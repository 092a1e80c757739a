package records

import (
	"errors"
	"strings"
	"time"

	"github.com/DeafMist/press-radar/internal/models"
)

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	// slash dates are day first; single-digit fields are accepted
	"2/1/2006",
}

// ParseTimestamp parses the timestamp formats seen in press-release exports
// and normalises the result to UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, f := range timestampFormats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognised timestamp format")
}

// SplitEntities splits a multi-value cell (e.g. "Economy; Trade") into
// trimmed entries. Empty entries and placeholder entries containing "##" are dropped.
func SplitEntities(raw, sep string) []string {
	if sep == "" {
		sep = ";"
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		entity := strings.TrimSpace(part)
		if entity == "" || strings.Contains(entity, "##") {
			continue
		}
		out = append(out, entity)
	}
	return out
}

// ParseRaw validates one raw record. index is the record's position in the
// input and is only used for error reporting.
func ParseRaw(index int, raw models.RawRecord) (models.Record, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return models.Record{}, &SchemaError{Index: index, Field: "id", Reason: "missing"}
	}

	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return models.Record{}, &SchemaError{Index: index, ID: id, Field: "timestamp", Reason: err.Error()}
	}

	source := strings.TrimSpace(raw.Source)
	if source == "" {
		return models.Record{}, &SchemaError{Index: index, ID: id, Field: "source", Reason: "missing"}
	}

	title := strings.TrimSpace(raw.Title)
	text := strings.TrimSpace(raw.Text)
	if title == "" && text == "" {
		return models.Record{}, &SchemaError{Index: index, ID: id, Field: "text", Reason: "missing"}
	}

	return models.NewRecord(id, ts, source, normaliseTopics(raw.Topics), title, text), nil
}

// normaliseTopics trims topics and drops empty and repeated entries, keeping first-seen order.
func normaliseTopics(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
