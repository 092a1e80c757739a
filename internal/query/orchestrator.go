// Package query coordinates filtering, trend aggregation and term analysis
// over the published record store, memoising results per request
// fingerprint until the next refresh.
package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/DeafMist/press-radar/internal/filter"
	"github.com/DeafMist/press-radar/internal/ingest"
	"github.com/DeafMist/press-radar/internal/metrics"
	"github.com/DeafMist/press-radar/internal/models"
	"github.com/DeafMist/press-radar/internal/records"
	"github.com/DeafMist/press-radar/internal/terms"
	"github.com/DeafMist/press-radar/internal/trend"
)

// DefaultCacheSize is used when Options.CacheSize is not positive.
const DefaultCacheSize = 128

// DefaultMaxBuckets is used when Options.MaxBuckets is not positive.
const DefaultMaxBuckets = 10000

// AggSpec describes what to compute over the filtered view.
type AggSpec struct {
	Granularity trend.Granularity `json:"granularity,omitempty"`
	GroupBy     trend.GroupBy     `json:"groupBy,omitempty"`
	Terms       terms.Options     `json:"-"`
	// TopGroups and MinGroupCount trim the source and topic tables.
	TopGroups     int `json:"topGroups,omitempty"`
	MinGroupCount int `json:"minGroupCount,omitempty"`
}

// Result is shared between callers once cached and must not be mutated.
type Result struct {
	Generation  uint64             `json:"generation"`
	Fingerprint string             `json:"fingerprint"`
	Total       int                `json:"total"`
	Matched     int                `json:"matched"`
	Trend       trend.Series       `json:"trend"`
	Terms       terms.Table        `json:"terms"`
	Sources     []trend.GroupCount `json:"sources"`
	Topics      []trend.GroupCount `json:"topics"`
}

// Options are fixed at construction.
type Options struct {
	DefaultGranularity trend.Granularity
	// Stopwords applies to requests that do not bring their own set.
	// nil selects the built-in list.
	Stopwords      terms.Set
	MinTermLength  int
	CacheSize      int
	RefreshTimeout time.Duration
	MaxTextScan    int
	// MaxBuckets bounds the trend series a single query may produce.
	MaxBuckets     int
}

// Stats counts cache outcomes since construction.
type Stats struct {
	Hits         uint64
	Computations uint64
}

type snapshot struct {
	store      *records.Store
	generation uint64
}

// Orchestrator serves queries against the current store generation.
// Refresh builds a new store aside and publishes it with one atomic swap,
// so in-flight queries keep reading the snapshot they started with.
type Orchestrator struct {
	log    *slog.Logger
	source ingest.Source
	opts   Options

	current   atomic.Pointer[snapshot]
	refreshMu sync.Mutex
	cache     *resultCache
	group     singleflight.Group

	hits         atomic.Uint64
	computations atomic.Uint64
}

// New creates an orchestrator serving an empty generation 0 store.
// source may be nil when records are only pushed through Load.
func New(logger *slog.Logger, source ingest.Source, opts Options) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.DefaultGranularity == "" {
		opts.DefaultGranularity = trend.Week
	}
	g, err := trend.ParseGranularity(string(opts.DefaultGranularity))
	if err != nil {
		return nil, err
	}
	opts.DefaultGranularity = g
	if opts.MinTermLength <= 0 {
		opts.MinTermLength = terms.DefaultMinLength
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.MaxBuckets <= 0 {
		opts.MaxBuckets = DefaultMaxBuckets
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = ingest.DefaultTimeout
	}

	o := &Orchestrator{
		log:    logger,
		source: source,
		opts:   opts,
		cache:  newResultCache(opts.CacheSize),
	}
	o.current.Store(&snapshot{store: records.Empty()})
	return o, nil
}

// Generation returns the generation of the published store.
func (o *Orchestrator) Generation() uint64 {
	return o.current.Load().generation
}

// Store returns the published store.
func (o *Orchestrator) Store() *records.Store {
	return o.current.Load().store
}

// Sources lists the distinct sources of the published store.
func (o *Orchestrator) Sources() []string {
	return o.Store().ListSources()
}

// Topics lists the distinct topics of the published store.
func (o *Orchestrator) Topics() []string {
	return o.Store().ListTopics()
}

// Stats reports cache hits and computations.
func (o *Orchestrator) Stats() Stats {
	return Stats{Hits: o.hits.Load(), Computations: o.computations.Load()}
}

// Refresh fetches the full record set from the source under the
// configured timeout and publishes it as a new generation. On any error
// the previous generation keeps serving and its generation is returned.
func (o *Orchestrator) Refresh(ctx context.Context) (uint64, error) {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	started := time.Now()
	raws, err := ingest.Fetch(ctx, o.source, o.opts.RefreshTimeout)
	if err != nil {
		var schema *records.SchemaError
		if errors.As(err, &schema) {
			metrics.ObserveRefresh(metrics.OutcomeRejected)
		} else {
			metrics.ObserveRefresh(metrics.OutcomeUnavailable)
		}
		o.log.Warn("refresh failed, serving previous generation",
			slog.Any("err", err),
			slog.Uint64("generation", o.Generation()),
		)
		return o.Generation(), err
	}

	gen, err := o.load(raws)
	if err != nil {
		return gen, err
	}
	o.log.Info("store refreshed",
		slog.Uint64("generation", gen),
		slog.Int("records", o.Store().Len()),
		slog.Duration("took", time.Since(started)),
	)
	return gen, nil
}

// Load builds a store from raws and publishes it as a new generation.
// A schema or duplicate-id error leaves the current generation in place.
func (o *Orchestrator) Load(raws []models.RawRecord) (uint64, error) {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()
	return o.load(raws)
}

func (o *Orchestrator) load(raws []models.RawRecord) (uint64, error) {
	store, err := records.Load(raws)
	if err != nil {
		metrics.ObserveRefresh(metrics.OutcomeRejected)
		o.log.Warn("records rejected, serving previous generation", slog.Any("err", err))
		return o.Generation(), err
	}

	next := &snapshot{store: store, generation: o.Generation() + 1}
	o.current.Store(next)
	o.cache.Purge()

	metrics.ObserveRefresh(metrics.OutcomeSuccess)
	metrics.SetStoreSize(store.Len(), next.generation)
	return next.generation, nil
}

// Query filters the published store and computes the trend series, term
// table and group frequencies for the result. A request whose fingerprint
// was already served in this generation returns the cached *Result;
// concurrent identical requests share a single computation.
func (o *Orchestrator) Query(ctx context.Context, f filter.Spec, a AggSpec) (*Result, error) {
	started := time.Now()

	if err := f.Validate(); err != nil {
		return nil, err
	}
	a, err := o.resolve(a)
	if err != nil {
		return nil, err
	}

	snap := o.current.Load()
	if err := o.checkSpan(snap.store, f, a.Granularity); err != nil {
		return nil, err
	}
	key := Fingerprint(snap.generation, f, a)
	if res, ok := o.cache.Get(key); ok {
		o.hits.Add(1)
		metrics.ObserveQuery(time.Since(started), true)
		return res, nil
	}

	v, err, _ := o.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		if res, ok := o.cache.Get(key); ok {
			o.hits.Add(1)
			return res, nil
		}
		res, err := o.compute(ctx, snap, key, f, a)
		if err != nil {
			return nil, err
		}
		if o.Generation() == snap.generation {
			o.cache.Add(key, res)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveQuery(time.Since(started), false)
	return v.(*Result), nil
}

// WordCloud returns the term to weight mapping of the records matching f.
func (o *Orchestrator) WordCloud(ctx context.Context, f filter.Spec, opts terms.Options) (map[string]int, error) {
	res, err := o.Query(ctx, f, AggSpec{Terms: opts})
	if err != nil {
		return nil, err
	}
	return res.Terms.WordCloud(), nil
}

// resolve fills request defaults from the orchestrator options so that
// an omitted field and its explicit default share a fingerprint.
func (o *Orchestrator) resolve(a AggSpec) (AggSpec, error) {
	if a.Granularity == "" {
		a.Granularity = o.opts.DefaultGranularity
	}
	g, err := trend.ParseGranularity(string(a.Granularity))
	if err != nil {
		return a, &filter.InvalidFilterError{Reason: err.Error()}
	}
	a.Granularity = g

	by, err := trend.ParseGroupBy(string(a.GroupBy))
	if err != nil {
		return a, &filter.InvalidFilterError{Reason: err.Error()}
	}
	a.GroupBy = by

	if a.TopGroups < 0 {
		a.TopGroups = 0
	}
	if a.MinGroupCount < 0 {
		a.MinGroupCount = 0
	}

	t := a.Terms
	if t.Stopwords == nil {
		t.Stopwords = o.opts.Stopwords
	}
	if t.MinLength <= 0 {
		t.MinLength = o.opts.MinTermLength
	}
	if t.MaxTerms < 0 {
		t.MaxTerms = 0
	}
	if t.NgramSize <= 0 {
		t.NgramSize = 1
	}
	a.Terms = t
	return a, nil
}

// checkSpan rejects requests whose trend series would exceed MaxBuckets.
// Open sides of the date range fall back to the store's own span.
func (o *Orchestrator) checkSpan(store *records.Store, f filter.Spec, g trend.Granularity) error {
	first, last, ok := store.Span()
	if !ok {
		return nil
	}
	if f.DateRange != nil {
		from, to := f.DateRange.Bounds()
		if !from.IsZero() {
			first = from
		}
		if !to.IsZero() {
			last = to.Add(-time.Nanosecond)
		}
	}
	if n := trend.BucketCount(first, last, g); n > o.opts.MaxBuckets {
		return &filter.InvalidFilterError{
			Reason: fmt.Sprintf("date range needs %d %s buckets, limit is %d", n, g, o.opts.MaxBuckets),
		}
	}
	return nil
}

func (o *Orchestrator) compute(ctx context.Context, snap *snapshot, key uint64, f filter.Spec, a AggSpec) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store := snap.store
	view, err := filter.Engine{MaxTextScan: o.opts.MaxTextScan}.Apply(store, f)
	if err != nil {
		return nil, err
	}
	o.computations.Add(1)

	res := &Result{
		Generation:  snap.generation,
		Fingerprint: strconv.FormatUint(key, 16),
		Total:       store.Len(),
		Matched:     view.Len(),
	}
	groupOpts := trend.FrequencyOptions{TopN: a.TopGroups, MinCount: a.MinGroupCount}

	// The four computations only read store and view.
	var g errgroup.Group
	g.Go(func() error {
		res.Trend = trend.Aggregate(store, view, trend.Options{
			Granularity: a.Granularity,
			GroupBy:     a.GroupBy,
			Range:       f.DateRange,
		})
		return nil
	})
	g.Go(func() error {
		res.Terms = terms.Analyze(store, view, a.Terms)
		return nil
	})
	g.Go(func() error {
		res.Sources = trend.Frequencies(store, view, trend.GroupSource, groupOpts)
		return nil
	})
	g.Go(func() error {
		res.Topics = trend.Frequencies(store, view, trend.GroupTopic, groupOpts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if res.Terms == nil {
		res.Terms = terms.Table{}
	}

	o.log.Debug("query computed",
		slog.String("fingerprint", res.Fingerprint),
		slog.Uint64("generation", res.Generation),
		slog.Int("matched", res.Matched),
	)
	return res, nil
}
