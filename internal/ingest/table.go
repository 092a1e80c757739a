package ingest

import (
	"fmt"
	"strings"

	"github.com/DeafMist/press-radar/internal/models"
	"github.com/DeafMist/press-radar/internal/records"
	"github.com/DeafMist/press-radar/internal/terms"
)

// Columns maps spreadsheet headers to record fields. Each field lists the
// accepted header names, compared case-insensitively.
type Columns struct {
	ID             []string
	Timestamp      []string
	Source         []string
	Topics         []string
	Title          []string
	Text           []string
	TopicSeparator string
}

// DefaultColumns recognises English headers and the Indonesian headers of
// the original press-release sheets.
func DefaultColumns() Columns {
	return Columns{
		ID:             []string{"id", "no"},
		Timestamp:      []string{"timestamp", "date", "publikasi", "tanggal"},
		Source:         []string{"source", "spokesperson", "narasumber"},
		Topics:         []string{"topics", "topic", "tags", "topik", "isu"},
		Title:          []string{"title", "judul"},
		Text:           []string{"text", "content", "isi", "konten"},
		TopicSeparator: ";",
	}
}

// FromRows converts a header row plus data rows into raw records. Rows that
// are entirely blank are skipped. When no id column exists, an id is derived
// from source, text and timestamp.
func FromRows(header []string, rows [][]string, cols Columns) ([]models.RawRecord, error) {
	find := func(names []string) int {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(h))
			for _, n := range names {
				if h == n {
					return i
				}
			}
		}
		return -1
	}

	idCol := find(cols.ID)
	tsCol := find(cols.Timestamp)
	srcCol := find(cols.Source)
	topicCol := find(cols.Topics)
	titleCol := find(cols.Title)
	textCol := find(cols.Text)

	switch {
	case tsCol < 0:
		return nil, missingColumn("timestamp")
	case srcCol < 0:
		return nil, missingColumn("source")
	case textCol < 0 && titleCol < 0:
		return nil, missingColumn("text")
	}

	out := make([]models.RawRecord, 0, len(rows))
	for n, row := range rows {
		if blank(row) {
			continue
		}
		raw := models.RawRecord{
			ID:        cell(row, idCol),
			Timestamp: cell(row, tsCol),
			Source:    cell(row, srcCol),
			Title:     cell(row, titleCol),
			Text:      cell(row, textCol),
		}
		if topicCol >= 0 {
			raw.Topics = records.SplitEntities(cell(row, topicCol), cols.TopicSeparator)
		}
		if raw.ID == "" {
			raw.ID = deriveID(raw, n)
		}
		out = append(out, raw)
	}
	return out, nil
}

func deriveID(raw models.RawRecord, row int) string {
	ts, err := records.ParseTimestamp(raw.Timestamp)
	if err != nil {
		// header is row 1
		return fmt.Sprintf("row-%d", row+2)
	}
	return terms.BuildDocumentID(raw.Source, raw.Title+"|"+raw.Text, ts)
}

func missingColumn(field string) error {
	return &records.SchemaError{Index: -1, Field: field, Reason: "column not found in header"}
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
