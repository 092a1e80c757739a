// Package terms extracts ranked term frequencies from press-release text
// for word clouds and keyword trends.
package terms

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/DeafMist/press-radar/internal/filter"
	"github.com/DeafMist/press-radar/internal/records"
)

// DefaultMinLength is the shortest token kept when Options.MinLength is zero.
const DefaultMinLength = 2

// Options configure Analyze.
type Options struct {
	// Stopwords to drop. nil selects DefaultStopwords; an empty set drops nothing.
	Stopwords Set
	// MinLength is the minimum token length in runes. Zero selects DefaultMinLength.
	MinLength int
	// MaxTerms truncates the table. Zero or negative keeps every term.
	MaxTerms int
	// NgramSize is the number of consecutive tokens per term. Zero selects 1.
	NgramSize int
	// KeepNumbers keeps purely numeric tokens.
	KeepNumbers bool
}

// WithDefaults returns o with zero fields replaced by their defaults.
func (o Options) WithDefaults() Options {
	if o.Stopwords == nil {
		o.Stopwords = defaultStopwords
	}
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	if o.NgramSize <= 0 {
		o.NgramSize = 1
	}
	return o
}

// TermCount is one row of a term frequency table.
type TermCount struct {
	Term      string `json:"term"`
	Frequency int    `json:"frequency"`
}

// Table is sorted by frequency descending; equal frequencies keep the order
// the terms were first seen in the corpus.
type Table []TermCount

// WordCloud returns the table as a term to weight mapping.
func (t Table) WordCloud() map[string]int {
	out := make(map[string]int, len(t))
	for _, tc := range t {
		out[tc.Term] = tc.Frequency
	}
	return out
}

// Analyze counts the terms of the records in view. Records are read in
// canonical order, title before text, so identical input always yields the
// same table. N-grams never span two records.
func Analyze(store *records.Store, view filter.View, opts Options) Table {
	texts := make([]string, 0, view.Len())
	for _, pos := range view.Positions() {
		rec := store.At(pos)
		texts = append(texts, rec.Title+"\n"+rec.Text)
	}
	return analyzeTexts(texts, opts)
}

func analyzeTexts(texts []string, opts Options) Table {
	opts = opts.WithDefaults()

	counts := make(map[string]int)
	var order []string
	for _, text := range texts {
		tokens := filterTokens(Tokenize(text), opts)
		for _, term := range ngrams(tokens, opts.NgramSize) {
			if _, ok := counts[term]; !ok {
				order = append(order, term)
			}
			counts[term]++
		}
	}

	table := make(Table, 0, len(order))
	for _, term := range order {
		table = append(table, TermCount{Term: term, Frequency: counts[term]})
	}
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Frequency > table[j].Frequency
	})

	if opts.MaxTerms > 0 && len(table) > opts.MaxTerms {
		table = table[:opts.MaxTerms]
	}
	return table
}

// Tokenize lower-cases text with URLs removed and splits it into runs of
// letters and digits.
func Tokenize(text string) []string {
	text = strings.ToLower(RemoveURLs(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func filterTokens(tokens []string, opts Options) []string {
	kept := tokens[:0]
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < opts.MinLength {
			continue
		}
		if opts.Stopwords.Contains(tok) {
			continue
		}
		if !opts.KeepNumbers && isNumeric(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

func ngrams(tokens []string, n int) []string {
	if n <= 1 {
		return tokens
	}
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
