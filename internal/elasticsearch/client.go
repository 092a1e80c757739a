package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/press-radar/internal/models"
)

const (
	scrollKeepAlive = time.Minute
	scrollPageSize  = 1000
)

// Client wraps go-elasticsearch with helpers tailored to the press-release index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// Index returns the index the client reads and writes.
func (c *Client) Index() string {
	return c.index
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// IndexRelease writes a press release into Elasticsearch.
func (c *Client) IndexRelease(ctx context.Context, doc models.PressRelease) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

type scrollPage struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			Source models.PressRelease `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// FetchAll reads every press release in the index with the scroll API.
// The scroll context is cleared before returning.
func (c *Client) FetchAll(ctx context.Context) ([]models.PressRelease, error) {
	body := map[string]any{
		"size":  scrollPageSize,
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []string{"_doc"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal scroll body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithScroll(scrollKeepAlive),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	page, err := decodePage(res)
	if err != nil {
		return nil, err
	}

	var docs []models.PressRelease
	scrollID := page.ScrollID
	defer func() { c.clearScroll(scrollID) }()

	for len(page.Hits.Hits) > 0 {
		for _, hit := range page.Hits.Hits {
			docs = append(docs, hit.Source)
		}
		if scrollID == "" {
			break
		}

		res, err := c.es.Scroll(
			c.es.Scroll.WithContext(ctx),
			c.es.Scroll.WithScrollID(scrollID),
			c.es.Scroll.WithScroll(scrollKeepAlive),
		)
		if err != nil {
			return nil, fmt.Errorf("scroll: %w", err)
		}
		page, err = decodePage(res)
		if err != nil {
			return nil, err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}

	c.log.Debug("fetched press releases", slog.String("index", c.index), slog.Int("count", len(docs)))
	return docs, nil
}

func decodePage(res *esapi.Response) (*scrollPage, error) {
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var page scrollPage
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &page, nil
}

func (c *Client) clearScroll(scrollID string) {
	if scrollID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.es.ClearScroll(
		c.es.ClearScroll.WithContext(ctx),
		c.es.ClearScroll.WithScrollID(scrollID),
	)
	if err != nil {
		c.log.Warn("clear scroll", slog.Any("err", err))
		return
	}
	res.Body.Close()
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
