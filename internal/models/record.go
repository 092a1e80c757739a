package models

import (
	"strings"
	"time"
)

// RawRecord is the shape handed over by ingestion collaborators before validation.
type RawRecord struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Source    string   `json:"source"`
	Topics    []string `json:"topics"`
	Title     string   `json:"title,omitempty"`
	Text      string   `json:"text"`
}

// Record is a validated, normalised press release. Immutable after load.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Topics    []string  `json:"topics"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text"`

	// searchText is the lower-cased title and text, computed once at load.
	searchText string
}

// NewRecord builds a Record and computes its derived fields.
func NewRecord(id string, ts time.Time, source string, topics []string, title, text string) Record {
	return Record{
		ID:         id,
		Timestamp:  ts,
		Source:     source,
		Topics:     topics,
		Title:      title,
		Text:       text,
		searchText: lowerJoin(title, text),
	}
}

// SearchText returns the lower-cased title and text used by the text predicate.
func (r Record) SearchText() string {
	if r.searchText == "" && (r.Title != "" || r.Text != "") {
		return lowerJoin(r.Title, r.Text)
	}
	return r.searchText
}

// HasTopic reports whether the record is tagged with topic.
func (r Record) HasTopic(topic string) bool {
	for _, t := range r.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// PressRelease is the document stored in Elasticsearch by the worker.
type PressRelease struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Topics    []string  `json:"topics"`
	Keywords  []string  `json:"keywords"`
	URLs      []string  `json:"urls"`
	// TitleGenerated marks a title derived from Text by the worker.
	TitleGenerated bool `json:"title_generated,omitempty"`
}

// Raw converts the stored document back to the ingestion shape. A generated
// title is dropped since its words already occur in Text.
func (p PressRelease) Raw() RawRecord {
	raw := RawRecord{
		ID:        p.ID,
		Timestamp: p.Timestamp.UTC().Format(time.RFC3339),
		Source:    p.Source,
		Topics:    append([]string(nil), p.Topics...),
		Title:     p.Title,
		Text:      p.Text,
	}
	if p.TitleGenerated {
		raw.Title = ""
	}
	return raw
}

func lowerJoin(title, text string) string {
	switch {
	case title == "":
		return strings.ToLower(text)
	case text == "":
		return strings.ToLower(title)
	default:
		return strings.ToLower(title + "\n" + text)
	}
}
