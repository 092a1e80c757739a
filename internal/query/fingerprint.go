package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/DeafMist/press-radar/internal/filter"
)

// Fingerprint hashes a normalised request together with the store
// generation it is evaluated against. Requests that differ only in value
// order, whitespace or letter case of the text query share a fingerprint.
func Fingerprint(generation uint64, f filter.Spec, a AggSpec) uint64 {
	f = f.Normalize()
	d := xxhash.New()

	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = d.WriteString(p)
		}
		_, _ = d.WriteString("\n")
	}

	write("gen=", strconv.FormatUint(generation, 10))
	if f.DateRange != nil {
		write("from=", formatDay(f.DateRange.Start), ";to=", formatDay(f.DateRange.End))
	}
	write("sources=", joinEscaped(f.Sources))
	write("topics=", joinEscaped(f.Topics))
	write("text=", strconv.Quote(f.TextQuery))

	write("granularity=", string(a.Granularity), ";group=", string(a.GroupBy))
	write("top=", strconv.Itoa(a.TopGroups), ";min=", strconv.Itoa(a.MinGroupCount))

	t := a.Terms
	if t.Stopwords == nil {
		write("stopwords=default")
	} else {
		write("stopwords=", joinEscaped(t.Stopwords.Sorted()))
	}
	write("minlen=", strconv.Itoa(t.MinLength), ";max=", strconv.Itoa(t.MaxTerms),
		";ngram=", strconv.Itoa(t.NgramSize), ";numbers=", strconv.FormatBool(t.KeepNumbers))

	return d.Sum64()
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func joinEscaped(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, strconv.Quote(v))
	}
	return strings.Join(quoted, ",")
}
