package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeafMist/press-radar/internal/filter"
	"github.com/DeafMist/press-radar/internal/ingest"
	"github.com/DeafMist/press-radar/internal/query"
	"github.com/DeafMist/press-radar/internal/records"
	"github.com/DeafMist/press-radar/internal/terms"
	"github.com/DeafMist/press-radar/internal/trend"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

type server struct {
	log    *slog.Logger
	orch   *query.Orchestrator
	health healthChecker
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/query", s.handleQuery)
	r.Get("/sources", s.handleSources)
	r.Get("/topics", s.handleTopics)
	r.Get("/wordcloud", s.handleWordCloud)
	r.Post("/refresh", s.handleRefresh)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.health.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"generation": s.orch.Generation(),
		"records":    s.orch.Store().Len(),
	})
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilter(q, s.orch.Sources(), s.orch.Topics())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := parseTermOptions(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	agg := query.AggSpec{
		Granularity: trend.Granularity(strings.TrimSpace(q.Get("granularity"))),
		GroupBy:     trend.GroupBy(strings.TrimSpace(q.Get("groupBy"))),
		Terms:       opts,
	}
	if agg.TopGroups, err = intParam(q, "top"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if agg.MinGroupCount, err = intParam(q, "minCount"); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.orch.Query(r.Context(), f, agg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sources": s.orch.Sources()})
}

func (s *server) handleTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"topics": s.orch.Topics()})
}

func (s *server) handleWordCloud(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilter(q, s.orch.Sources(), s.orch.Topics())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := parseTermOptions(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cloud, err := s.orch.WordCloud(r.Context(), f, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cloud)
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshID := uuid.NewString()
	log := s.log.With(
		slog.String("refresh_id", refreshID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	log.Info("refresh requested")

	gen, err := s.orch.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	log.Info("refresh completed", slog.Uint64("generation", gen))
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshId":  refreshID,
		"generation": gen,
		"records":    s.orch.Store().Len(),
	})
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("err", err),
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var (
		invalid     *filter.InvalidFilterError
		unavailable *ingest.SourceUnavailableError
		schema      *records.SchemaError
		duplicate   *records.DuplicateIDError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &schema), errors.As(err, &duplicate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseFilter reads start, end, sources, topics and q. Sources and topics
// accept repeated parameters and comma separated values. knownSources and
// knownTopics are sorted; a value matching one of them exactly is never split.
func parseFilter(q url.Values, knownSources, knownTopics []string) (filter.Spec, error) {
	f := filter.Spec{
		Sources:   listParam(q, "sources", knownSources),
		Topics:    listParam(q, "topics", knownTopics),
		TextQuery: q.Get("q"),
	}

	start, err := dateParam(q, "start")
	if err != nil {
		return f, err
	}
	end, err := dateParam(q, "end")
	if err != nil {
		return f, err
	}
	if !start.IsZero() || !end.IsZero() {
		f.DateRange = &filter.DateRange{Start: start, End: end}
	}
	return f, f.Validate()
}

// parseTermOptions reads minLength, maxTerms, ngram, numbers and
// stopwords. stopwords=none disables stopword removal.
func parseTermOptions(q url.Values) (terms.Options, error) {
	var (
		opts terms.Options
		err  error
	)
	if opts.MinLength, err = intParam(q, "minLength"); err != nil {
		return opts, err
	}
	if opts.MaxTerms, err = intParam(q, "maxTerms"); err != nil {
		return opts, err
	}
	if opts.NgramSize, err = intParam(q, "ngram"); err != nil {
		return opts, err
	}
	if raw := strings.TrimSpace(q.Get("numbers")); raw != "" {
		if opts.KeepNumbers, err = strconv.ParseBool(raw); err != nil {
			return opts, &filter.InvalidFilterError{Reason: fmt.Sprintf("numbers: %q is not a boolean", raw)}
		}
	}
	if strings.EqualFold(strings.TrimSpace(q.Get("stopwords")), "none") {
		opts.Stopwords = terms.NewSet()
	}
	return opts, nil
}

func dateParam(q url.Values, key string) (time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := records.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, &filter.InvalidFilterError{Reason: fmt.Sprintf("%s: %v", key, err)}
	}
	return ts, nil
}

func intParam(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &filter.InvalidFilterError{Reason: fmt.Sprintf("%s: %q is not a non-negative integer", key, raw)}
	}
	return v, nil
}

func listParam(q url.Values, key string, known []string) []string {
	var out []string
	for _, raw := range q[key] {
		whole := strings.TrimSpace(raw)
		if i := sort.SearchStrings(known, whole); i < len(known) && known[i] == whole {
			out = append(out, whole)
			continue
		}
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
