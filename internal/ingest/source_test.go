package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/press-radar/internal/filter"
	"github.com/DeafMist/press-radar/internal/ingest"
	"github.com/DeafMist/press-radar/internal/models"
	"github.com/DeafMist/press-radar/internal/records"
	"github.com/DeafMist/press-radar/internal/terms"
)

type funcSource func(ctx context.Context) ([]models.RawRecord, error)

func (f funcSource) Name() string { return "func" }

func (f funcSource) Fetch(ctx context.Context) ([]models.RawRecord, error) { return f(ctx) }

func TestFetchReturnsRecords(t *testing.T) {
	src := ingest.Static{Records: []models.RawRecord{{ID: "a"}, {ID: "b"}}}
	raws, err := ingest.Fetch(context.Background(), src, time.Second)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "static", src.Name())
}

func TestFetchWrapsSourceErrors(t *testing.T) {
	cause := errors.New("quota exceeded")
	src := funcSource(func(context.Context) ([]models.RawRecord, error) { return nil, cause })

	_, err := ingest.Fetch(context.Background(), src, time.Second)
	var unavailable *ingest.SourceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Equal(t, "func", unavailable.Source)
	require.ErrorIs(t, err, cause)
}

func TestFetchPassesSchemaErrorsThrough(t *testing.T) {
	src := funcSource(func(context.Context) ([]models.RawRecord, error) {
		return ingest.FromRows([]string{"source", "text"}, nil, ingest.DefaultColumns())
	})

	_, err := ingest.Fetch(context.Background(), src, time.Second)
	var schemaErr *records.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "timestamp", schemaErr.Field)

	var unavailable *ingest.SourceUnavailableError
	require.False(t, errors.As(err, &unavailable))
}

func TestFetchTimesOutWhenSourceIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	src := funcSource(func(context.Context) ([]models.RawRecord, error) {
		<-release
		return nil, nil
	})

	started := time.Now()
	_, err := ingest.Fetch(context.Background(), src, 20*time.Millisecond)
	require.Less(t, time.Since(started), 5*time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchWithoutSource(t *testing.T) {
	_, err := ingest.Fetch(context.Background(), nil, time.Second)
	var unavailable *ingest.SourceUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

type fakeFetcher struct {
	docs []models.PressRelease
	err  error
}

func (f fakeFetcher) FetchAll(context.Context) ([]models.PressRelease, error) {
	return f.docs, f.err
}

func TestElasticsearchSourceConvertsReleases(t *testing.T) {
	src := &ingest.Elasticsearch{
		Index: "press_releases",
		Client: fakeFetcher{docs: []models.PressRelease{{
			ID:        "kemenkeu-1",
			Title:     "APBN 2025",
			Text:      "Belanja negara naik",
			Timestamp: time.Date(2024, 8, 16, 3, 0, 0, 0, time.FixedZone("WIB", 7*3600)),
			Source:    "Kementerian Keuangan",
			Topics:    []string{"fiskal"},
			Keywords:  []string{"belanja"},
		}}},
	}

	raws, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []models.RawRecord{{
		ID:        "kemenkeu-1",
		Timestamp: "2024-08-15T20:00:00Z",
		Source:    "Kementerian Keuangan",
		Topics:    []string{"fiskal"},
		Title:     "APBN 2025",
		Text:      "Belanja negara naik",
	}}, raws)
	require.Equal(t, "elasticsearch:press_releases", src.Name())

	src.Client = fakeFetcher{err: errors.New("index_not_found_exception")}
	_, err = src.Fetch(context.Background())
	require.ErrorContains(t, err, "index_not_found_exception")
}

func TestElasticsearchSourceSkipsGeneratedTitles(t *testing.T) {
	src := &ingest.Elasticsearch{
		Index: "press_releases",
		Client: fakeFetcher{docs: []models.PressRelease{{
			ID:             "kemendag-1",
			Title:          "Export naik tajam",
			Text:           "Export naik tajam. Impor turun.",
			Timestamp:      time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
			Source:         "Kementerian Perdagangan",
			TitleGenerated: true,
		}}},
	}

	raws, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, raws[0].Title)

	store, err := records.Load(raws)
	require.NoError(t, err)
	view, err := filter.Apply(store, filter.Spec{})
	require.NoError(t, err)

	table := terms.Analyze(store, view, terms.Options{Stopwords: terms.Set{}})
	require.Equal(t, terms.Table{
		{Term: "export", Frequency: 1},
		{Term: "naik", Frequency: 1},
		{Term: "tajam", Frequency: 1},
		{Term: "impor", Frequency: 1},
		{Term: "turun", Frequency: 1},
	}, table)
}
