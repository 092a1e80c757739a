// Package ingest adapts external press-release stores into raw records for
// the record store. Every fetch runs under a deadline so a slow or dead
// backend surfaces as SourceUnavailableError instead of hanging a refresh.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DeafMist/press-radar/internal/models"
	"github.com/DeafMist/press-radar/internal/records"
)

// Source supplies the full raw record set on every call.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// SourceUnavailableError reports a failed or timed-out fetch.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// DefaultTimeout bounds a fetch when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Fetch calls src.Fetch with a deadline. It returns once the deadline
// passes even if the source ignores its context.
func Fetch(ctx context.Context, src Source, timeout time.Duration) ([]models.RawRecord, error) {
	if src == nil {
		return nil, &SourceUnavailableError{Source: "none", Err: errors.New("no source configured")}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		raws []models.RawRecord
		err  error
	}
	done := make(chan result, 1)
	go func() {
		raws, err := src.Fetch(ctx)
		done <- result{raws: raws, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &SourceUnavailableError{Source: src.Name(), Err: ctx.Err()}
	case r := <-done:
		var schema *records.SchemaError
		if errors.As(r.err, &schema) {
			return nil, r.err
		}
		if r.err != nil {
			return nil, &SourceUnavailableError{Source: src.Name(), Err: r.err}
		}
		return r.raws, nil
	}
}

// Static serves a fixed record set. Useful for pushing records that were
// collected elsewhere through the same refresh path.
type Static struct {
	Label   string
	Records []models.RawRecord
}

func (s Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s Static) Fetch(context.Context) ([]models.RawRecord, error) {
	return append([]models.RawRecord(nil), s.Records...), nil
}
