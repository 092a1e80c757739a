package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/DeafMist/press-radar/internal/config"
	"github.com/DeafMist/press-radar/internal/elasticsearch"
	"github.com/DeafMist/press-radar/internal/ingest"
	"github.com/DeafMist/press-radar/internal/logger"
	"github.com/DeafMist/press-radar/internal/metrics"
	"github.com/DeafMist/press-radar/internal/query"
	"github.com/DeafMist/press-radar/internal/terms"
	"github.com/DeafMist/press-radar/internal/trend"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sw, err := config.LoadStopwords(cfg.Analytics.StopwordsFile)
	if err != nil {
		log.Error("load stopwords", slog.Any("err", err))
		os.Exit(1)
	}

	src, health, err := buildSource(ctx, log, cfg)
	if err != nil {
		log.Error("init ingest source", slog.Any("err", err))
		os.Exit(1)
	}

	orch, err := query.New(log, src, query.Options{
		DefaultGranularity: trend.Granularity(cfg.Analytics.DefaultGranularity),
		Stopwords:          stopwordSet(sw),
		MinTermLength:      cfg.Analytics.MinTermLength,
		CacheSize:          cfg.Analytics.CacheSize,
		RefreshTimeout:     cfg.Ingest.RefreshTimeout,
		MaxTextScan:        cfg.Analytics.MaxTextScan,
		MaxBuckets:         cfg.Analytics.MaxBuckets,
	})
	if err != nil {
		log.Error("init orchestrator", slog.Any("err", err))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		log.Error("register metrics", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{log: log, orch: orch, health: health}
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(reg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Ingest.RefreshTimeout + 15*time.Second,
	}

	go query.RunRefresher(ctx, orch, cfg.Ingest.RefreshInterval)

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("ingest", src.Name()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

// buildSource returns the configured ingest source and, for the
// Elasticsearch source, the client used by /health.
func buildSource(ctx context.Context, log *slog.Logger, cfg *config.API) (ingest.Source, healthChecker, error) {
	switch cfg.Ingest.Source {
	case config.IngestSheets:
		src, err := ingest.NewSheets(ctx, cfg.Ingest.SheetsSpreadsheetID, cfg.Ingest.SheetsRange, cfg.Ingest.SheetsCredentialsFile)
		return src, nil, err
	case config.IngestXLSX:
		src, err := ingest.NewWorkbook(cfg.Ingest.XLSXPath, cfg.Ingest.XLSXSheet)
		return src, nil, err
	case config.IngestElasticsearch:
		client, err := elasticsearch.Connect(ctx, cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log, elasticsearch.DefaultBackoff)
		if err != nil {
			return nil, nil, err
		}
		return &ingest.Elasticsearch{Client: client, Index: client.Index()}, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown ingest source %q", cfg.Ingest.Source)
	}
}

// stopwordSet turns the optional stopword file into the orchestrator
// default. nil keeps the built-in list.
func stopwordSet(sw *config.Stopwords) terms.Set {
	if sw == nil {
		return nil
	}
	custom := terms.NewSet(sw.Words...)
	if sw.Extend {
		return terms.DefaultStopwords().Union(custom)
	}
	return custom
}
