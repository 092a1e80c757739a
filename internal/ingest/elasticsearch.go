package ingest

import (
	"context"

	"github.com/DeafMist/press-radar/internal/models"
)

// ReleaseFetcher is the part of the Elasticsearch client the source needs.
type ReleaseFetcher interface {
	FetchAll(ctx context.Context) ([]models.PressRelease, error)
}

// Elasticsearch reads the press-release index populated by the worker.
type Elasticsearch struct {
	Client ReleaseFetcher
	Index  string
}

func (s *Elasticsearch) Name() string {
	return "elasticsearch:" + s.Index
}

func (s *Elasticsearch) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	docs, err := s.Client.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	raws := make([]models.RawRecord, 0, len(docs))
	for _, doc := range docs {
		raws = append(raws, doc.Raw())
	}
	return raws, nil
}
