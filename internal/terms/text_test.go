package terms_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/press-radar/internal/terms"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "punctuation", input: "Siaran pers!!!   resmi", want: "Siaran pers resmi"},
		{name: "entities", input: "Fiscal &amp; monetary", want: "Fiscal monetary"},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
		{name: "remove urls", input: "Read https://kemenkeu.go.id/sp for details", want: "Read for details"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, terms.CleanText(tt.input))
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	text := "Ekspor ekspor anggaran anggaran anggaran pajak dan dan subsidi"
	got := terms.ExtractKeywords(text, 3, 3)
	require.Equal(t, []string{"anggaran", "ekspor", "pajak"}, got)

	require.Nil(t, terms.ExtractKeywords("", 5, 3))
}

func TestExtractKeywordsIgnoresURLWords(t *testing.T) {
	text := "Ekspor anggaran anggaran https://example.com/budget-report pajak"
	got := terms.ExtractKeywords(text, 3, 3)
	require.ElementsMatch(t, []string{"anggaran", "ekspor", "pajak"}, got)
}

func TestBuildDocumentID(t *testing.T) {
	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	id1 := terms.BuildDocumentID("Ministry of Finance", "text", ts)
	id2 := terms.BuildDocumentID("Ministry of Finance", "text", ts.In(time.FixedZone("WIB", 7*3600)))
	require.NotEmpty(t, id1)
	require.Equal(t, id1, id2)
	require.NotEqual(t, id1, terms.BuildDocumentID("Ministry of Trade", "text", ts))
}

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "no urls", input: "Hello world", want: nil},
		{name: "single url", input: "Check https://example.com for more", want: []string{"https://example.com"}},
		{name: "multiple urls", input: "Go to https://example.com or http://test.org now", want: []string{"https://example.com", "http://test.org"}},
		{name: "duplicate urls", input: "https://example.com and https://example.com again", want: []string{"https://example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, terms.ExtractURLs(tt.input))
		})
	}
}

func TestGenerateTitleFromText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWords int
		want     string
	}{
		{name: "empty", text: "", maxWords: 10, want: ""},
		{name: "single sentence", text: "Pemerintah umumkan APBN 2025.", maxWords: 10, want: "Pemerintah umumkan APBN 2025"},
		{name: "multiple sentences", text: "Ekspor naik tajam! Neraca surplus. Rilis lengkap menyusul.", maxWords: 10, want: "Ekspor naik tajam"},
		{name: "long text truncated", text: "Menteri Keuangan menyampaikan realisasi anggaran semester pertama tahun ini", maxWords: 5, want: "Menteri Keuangan menyampaikan realisasi anggaran..."},
		{name: "unlimited words", text: "Subsidi energi tepat sasaran", maxWords: 0, want: "Subsidi energi tepat sasaran"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, terms.GenerateTitleFromText(tt.text, tt.maxWords))
		})
	}
}
