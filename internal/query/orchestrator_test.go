package query_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/press-radar/internal/filter"
	"github.com/DeafMist/press-radar/internal/ingest"
	"github.com/DeafMist/press-radar/internal/models"
	"github.com/DeafMist/press-radar/internal/query"
	"github.com/DeafMist/press-radar/internal/records"
	"github.com/DeafMist/press-radar/internal/terms"
	"github.com/DeafMist/press-radar/internal/trend"
)

func fixture() []models.RawRecord {
	return []models.RawRecord{
		{ID: "c", Timestamp: "2024-01-10", Source: "Finance", Topics: []string{"tax"}, Text: "Pajak karbon mulai berlaku"},
		{ID: "a", Timestamp: "2024-01-01", Source: "Finance", Topics: []string{"budget", "tax"}, Text: "Anggaran negara naik"},
		{ID: "b", Timestamp: "2024-01-03", Source: "Trade", Topics: []string{"export"}, Text: "Ekspor naik tajam"},
		{ID: "d", Timestamp: "2024-01-10", Source: "Health", Topics: []string{"health"}, Title: "Vaksin", Text: "Program vaksinasi naik"},
	}
}

type stubSource struct {
	fetch func(ctx context.Context) ([]models.RawRecord, error)
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	return s.fetch(ctx)
}

func newOrchestrator(t *testing.T, src ingest.Source, opts query.Options) *query.Orchestrator {
	t.Helper()
	o, err := query.New(nil, src, opts)
	require.NoError(t, err)
	return o
}

func loaded(t *testing.T, opts query.Options) *query.Orchestrator {
	t.Helper()
	o := newOrchestrator(t, nil, opts)
	gen, err := o.Load(fixture())
	require.NoError(t, err)
	require.Equal(t, uint64(1), gen)
	return o
}

func TestQueryIsIdempotent(t *testing.T) {
	o := loaded(t, query.Options{})
	ctx := context.Background()
	f := filter.Spec{Sources: []string{"Finance"}}

	first, err := o.Query(ctx, f, query.AggSpec{GroupBy: trend.GroupTopic})
	require.NoError(t, err)
	second, err := o.Query(ctx, f, query.AggSpec{GroupBy: trend.GroupTopic})
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, query.Stats{Hits: 1, Computations: 1}, o.Stats())
}

func TestEquivalentRequestsShareResult(t *testing.T) {
	o := loaded(t, query.Options{DefaultGranularity: trend.Week})
	ctx := context.Background()

	first, err := o.Query(ctx,
		filter.Spec{Sources: []string{"Trade", "Finance"}, TextQuery: "naik"},
		query.AggSpec{},
	)
	require.NoError(t, err)

	second, err := o.Query(ctx,
		filter.Spec{Sources: []string{" Finance", "Trade", "Finance"}, TextQuery: "  NAIK "},
		query.AggSpec{Granularity: trend.Week, GroupBy: trend.GroupNone, Terms: terms.Options{MinLength: terms.DefaultMinLength, NgramSize: 1}},
	)
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 2, first.Matched)
}

func TestRefreshInvalidatesCache(t *testing.T) {
	src := ingest.Static{Records: fixture()}
	o := newOrchestrator(t, src, query.Options{})
	ctx := context.Background()

	gen, err := o.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), gen)
	first, err := o.Query(ctx, filter.Spec{}, query.AggSpec{})
	require.NoError(t, err)

	gen, err = o.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), gen)
	second, err := o.Query(ctx, filter.Spec{}, query.AggSpec{})
	require.NoError(t, err)

	require.NotSame(t, first, second)
	require.NotEqual(t, first.Fingerprint, second.Fingerprint)
	require.Equal(t, uint64(2), second.Generation)
	require.Equal(t, first.Trend, second.Trend)
	require.Equal(t, first.Terms, second.Terms)
	require.Equal(t, uint64(2), o.Stats().Computations)
}

func TestConcurrentIdenticalQueriesComputeOnce(t *testing.T) {
	o := loaded(t, query.Options{})
	ctx := context.Background()

	const callers = 16
	results := make([]*query.Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := o.Query(ctx, filter.Spec{Topics: []string{"tax"}}, query.AggSpec{Granularity: trend.Day})
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.NotNil(t, res)
		require.Same(t, results[0], res)
	}
	require.Equal(t, uint64(1), o.Stats().Computations)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	o := loaded(t, query.Options{CacheSize: 1})
	ctx := context.Background()

	a := filter.Spec{Sources: []string{"Finance"}}
	b := filter.Spec{Sources: []string{"Trade"}}

	_, err := o.Query(ctx, a, query.AggSpec{})
	require.NoError(t, err)
	_, err = o.Query(ctx, b, query.AggSpec{})
	require.NoError(t, err)
	_, err = o.Query(ctx, a, query.AggSpec{})
	require.NoError(t, err)

	require.Equal(t, query.Stats{Hits: 0, Computations: 3}, o.Stats())
}

func TestQueryResultContents(t *testing.T) {
	o := loaded(t, query.Options{})

	res, err := o.Query(context.Background(), filter.Spec{}, query.AggSpec{Granularity: trend.Day, GroupBy: trend.GroupTopic})
	require.NoError(t, err)

	require.Equal(t, 4, res.Total)
	require.Equal(t, 4, res.Matched)
	require.Len(t, res.Trend.Buckets, 10)

	total, grouped := 0, 0
	for _, b := range res.Trend.Buckets {
		total += b.Count
		for _, n := range b.ByGroup {
			grouped += n
		}
	}
	require.Equal(t, res.Matched, total)
	require.Greater(t, grouped, total)

	require.Equal(t, trend.GroupCount{Key: "Finance", Count: 2, Share: 0.5}, res.Sources[0])
	require.Equal(t, "tax", res.Topics[0].Key)
	require.Equal(t, terms.TermCount{Term: "naik", Frequency: 3}, res.Terms[0])
}

func TestQueryRejectsInvalidRequests(t *testing.T) {
	o := loaded(t, query.Options{})
	ctx := context.Background()

	backwards := filter.Spec{DateRange: &filter.DateRange{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}

	tests := []struct {
		name string
		f    filter.Spec
		a    query.AggSpec
	}{
		{name: "start after end", f: backwards},
		{name: "unknown granularity", a: query.AggSpec{Granularity: "year"}},
		{name: "unknown group", a: query.AggSpec{GroupBy: "region"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Query(ctx, tt.f, tt.a)
			var invalid *filter.InvalidFilterError
			require.ErrorAs(t, err, &invalid)
		})
	}
	require.Equal(t, uint64(0), o.Stats().Computations)
}

func TestTextScanBound(t *testing.T) {
	o := loaded(t, query.Options{MaxTextScan: 2})
	ctx := context.Background()

	_, err := o.Query(ctx, filter.Spec{TextQuery: "naik"}, query.AggSpec{})
	var invalid *filter.InvalidFilterError
	require.ErrorAs(t, err, &invalid)

	res, err := o.Query(ctx, filter.Spec{Sources: []string{"Finance"}, TextQuery: "naik"}, query.AggSpec{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Matched)
}

func TestQueryRejectsOversizedSeries(t *testing.T) {
	o := loaded(t, query.Options{MaxBuckets: 31})
	ctx := context.Background()
	year := filter.Spec{DateRange: &filter.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}}

	_, err := o.Query(ctx, year, query.AggSpec{Granularity: trend.Day})
	var invalid *filter.InvalidFilterError
	require.ErrorAs(t, err, &invalid)

	res, err := o.Query(ctx, year, query.AggSpec{Granularity: trend.Month})
	require.NoError(t, err)
	require.Len(t, res.Trend.Buckets, 12)

	openEnd := filter.Spec{DateRange: &filter.DateRange{Start: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)}}
	_, err = o.Query(ctx, openEnd, query.AggSpec{Granularity: trend.Day})
	require.ErrorAs(t, err, &invalid)

	january := filter.Spec{DateRange: &filter.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}}
	res, err = o.Query(ctx, january, query.AggSpec{Granularity: trend.Day})
	require.NoError(t, err)
	require.Len(t, res.Trend.Buckets, 31)
	require.Equal(t, uint64(2), o.Stats().Computations)
}

func TestRefreshFailureKeepsPreviousGeneration(t *testing.T) {
	fail := true
	src := stubSource{fetch: func(context.Context) ([]models.RawRecord, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return fixture(), nil
	}}
	o := newOrchestrator(t, src, query.Options{})

	_, err := o.Load(fixture())
	require.NoError(t, err)
	before, err := o.Query(context.Background(), filter.Spec{}, query.AggSpec{})
	require.NoError(t, err)

	gen, err := o.Refresh(context.Background())
	var unavailable *ingest.SourceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Equal(t, uint64(1), gen)
	require.Equal(t, 4, o.Store().Len())

	after, err := o.Query(context.Background(), filter.Spec{}, query.AggSpec{})
	require.NoError(t, err)
	require.Same(t, before, after)

	fail = false
	gen, err = o.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), gen)
}

func TestRefreshTimesOut(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	src := stubSource{fetch: func(context.Context) ([]models.RawRecord, error) {
		<-block
		return nil, nil
	}}
	o := newOrchestrator(t, src, query.Options{RefreshTimeout: 20 * time.Millisecond})

	started := time.Now()
	gen, err := o.Refresh(context.Background())
	require.Less(t, time.Since(started), 5*time.Second)

	var unavailable *ingest.SourceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, uint64(0), gen)
}

func TestRefreshWithoutSource(t *testing.T) {
	o := newOrchestrator(t, nil, query.Options{})
	_, err := o.Refresh(context.Background())
	var unavailable *ingest.SourceUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestLoadRejectsBadRecordsAndKeepsGeneration(t *testing.T) {
	o := loaded(t, query.Options{})

	dup := append(fixture(), models.RawRecord{ID: "a", Timestamp: "2024-01-02", Source: "Trade", Text: "again"})
	gen, err := o.Load(dup)
	var dupErr *records.DuplicateIDError
	require.ErrorAs(t, err, &dupErr)
	require.Equal(t, uint64(1), gen)

	gen, err = o.Load([]models.RawRecord{{ID: "x", Timestamp: "yesterday", Source: "Trade", Text: "t"}})
	var schemaErr *records.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, uint64(1), gen)
	require.Equal(t, uint64(1), o.Generation())
	require.Equal(t, []string{"Finance", "Health", "Trade"}, o.Sources())
	require.Equal(t, []string{"budget", "export", "health", "tax"}, o.Topics())
}

func TestEmptyStoreQuery(t *testing.T) {
	o := newOrchestrator(t, nil, query.Options{})
	res, err := o.Query(context.Background(), filter.Spec{Sources: []string{"Finance"}}, query.AggSpec{})
	require.NoError(t, err)
	require.Equal(t, 0, res.Matched)
	require.Empty(t, res.Trend.Buckets)
	require.Empty(t, res.Terms)
}

func TestWordCloud(t *testing.T) {
	o := loaded(t, query.Options{Stopwords: terms.NewSet("naik")})

	cloud, err := o.WordCloud(context.Background(), filter.Spec{Sources: []string{"Trade"}}, terms.Options{})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"ekspor": 1, "tajam": 1}, cloud)

	cloud, err = o.WordCloud(context.Background(), filter.Spec{Sources: []string{"Trade"}}, terms.Options{Stopwords: terms.NewSet()})
	require.NoError(t, err)
	require.Equal(t, 1, cloud["naik"])
}

func TestNewRejectsUnknownDefaultGranularity(t *testing.T) {
	_, err := query.New(nil, nil, query.Options{DefaultGranularity: "quarter"})
	require.Error(t, err)
}

func TestRunRefresherStopsWithContext(t *testing.T) {
	o := newOrchestrator(t, ingest.Static{Records: fixture()}, query.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		query.RunRefresher(ctx, o, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return o.Generation() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}
