package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported values of INGEST_SOURCE.
const (
	IngestElasticsearch = "elasticsearch"
	IngestSheets        = "sheets"
	IngestXLSX          = "xlsx"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
type Worker struct {
	Common
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaConsumer    string
	KeywordLimit     int
	KeywordMinLength int
	DedupeCapacity   int
	DedupeTTL        time.Duration
	BatchSize        int
	// CommitInterval batches offset commits. Zero commits each message synchronously.
	CommitInterval   time.Duration
}

// Analytics configures the query orchestrator.
type Analytics struct {
	DefaultGranularity string
	StopwordsFile      string
	CacheSize          int
	MinTermLength      int
	MaxTextScan        int
	MaxBuckets         int
}

// Ingest selects and configures the record source used by refreshes.
type Ingest struct {
	Source          string
	RefreshTimeout  time.Duration
	RefreshInterval time.Duration

	SheetsSpreadsheetID   string
	SheetsRange           string
	SheetsCredentialsFile string

	XLSXPath  string
	XLSXSheet string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr  string
	Analytics Analytics
	Ingest    Ingest
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:           loadCommon(),
		KafkaBrokers:     splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "press_releases_raw"),
		KafkaConsumer:    getEnv("KAFKA_CONSUMER_GROUP", "press-worker"),
		KeywordLimit:     getInt("WORKER_KEYWORD_LIMIT", 8),
		KeywordMinLength: getInt("WORKER_KEYWORD_MIN_LEN", 4),
		DedupeCapacity:   getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:        getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:        getInt("WORKER_BATCH_SIZE", 10),
		CommitInterval:   getDuration("WORKER_COMMIT_INTERVAL", "0s"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	if c.KeywordMinLength < 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_MIN_LEN cannot be negative")
	}
	if c.CommitInterval < 0 {
		return nil, fmt.Errorf("WORKER_COMMIT_INTERVAL cannot be negative")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:   loadCommon(),
		BindAddr: getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		Analytics: Analytics{
			DefaultGranularity: strings.ToLower(getEnv("ANALYTICS_DEFAULT_GRANULARITY", "week")),
			StopwordsFile:      getEnv("ANALYTICS_STOPWORDS_FILE", ""),
			CacheSize:          getInt("ANALYTICS_CACHE_SIZE", 128),
			MinTermLength:      getInt("ANALYTICS_MIN_TERM_LENGTH", 2),
			MaxTextScan:        getInt("ANALYTICS_MAX_TEXT_SCAN", 50000),
			MaxBuckets:         getInt("ANALYTICS_MAX_BUCKETS", 10000),
		},
		Ingest: Ingest{
			Source:                strings.ToLower(getEnv("INGEST_SOURCE", IngestElasticsearch)),
			RefreshTimeout:        getDuration("REFRESH_TIMEOUT", "30s"),
			RefreshInterval:       getDuration("REFRESH_INTERVAL", "15m"),
			SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
			SheetsRange:           getEnv("SHEETS_RANGE", "A:F"),
			SheetsCredentialsFile: getEnv("SHEETS_CREDENTIALS_FILE", ""),
			XLSXPath:              getEnv("XLSX_PATH", ""),
			XLSXSheet:             getEnv("XLSX_SHEET", ""),
		},
	}

	switch c.Analytics.DefaultGranularity {
	case "day", "week", "month":
	default:
		return nil, fmt.Errorf("ANALYTICS_DEFAULT_GRANULARITY must be day, week or month")
	}
	if c.Analytics.CacheSize <= 0 {
		return nil, fmt.Errorf("ANALYTICS_CACHE_SIZE must be positive")
	}
	if c.Analytics.MinTermLength <= 0 {
		return nil, fmt.Errorf("ANALYTICS_MIN_TERM_LENGTH must be positive")
	}
	if c.Analytics.MaxTextScan < 0 {
		return nil, fmt.Errorf("ANALYTICS_MAX_TEXT_SCAN cannot be negative")
	}
	if c.Analytics.MaxBuckets <= 0 {
		return nil, fmt.Errorf("ANALYTICS_MAX_BUCKETS must be positive")
	}
	if c.Ingest.RefreshTimeout <= 0 {
		return nil, fmt.Errorf("REFRESH_TIMEOUT must be positive")
	}
	if c.Ingest.RefreshInterval < 0 {
		return nil, fmt.Errorf("REFRESH_INTERVAL cannot be negative")
	}

	switch c.Ingest.Source {
	case IngestElasticsearch:
	case IngestSheets:
		if c.Ingest.SheetsSpreadsheetID == "" {
			return nil, fmt.Errorf("SHEETS_SPREADSHEET_ID is required when INGEST_SOURCE=sheets")
		}
	case IngestXLSX:
		if c.Ingest.XLSXPath == "" {
			return nil, fmt.Errorf("XLSX_PATH is required when INGEST_SOURCE=xlsx")
		}
	default:
		return nil, fmt.Errorf("INGEST_SOURCE must be elasticsearch, sheets or xlsx")
	}

	return c, nil
}

// Stopwords is the layout of the ANALYTICS_STOPWORDS_FILE YAML document.
type Stopwords struct {
	Words []string `yaml:"stopwords"`
	// Extend merges Words into the built-in list instead of replacing it.
	Extend bool `yaml:"extend"`
}

// LoadStopwords reads a stopword file. An empty path yields nil, which
// keeps the built-in list.
func LoadStopwords(path string) (*Stopwords, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stopwords file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("read stopwords: %w", err)
	}

	var sw Stopwords
	if err := yaml.Unmarshal(data, &sw); err != nil {
		return nil, fmt.Errorf("parse stopwords: %w", err)
	}
	return &sw, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "press_releases"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
