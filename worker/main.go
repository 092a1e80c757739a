package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/press-radar/internal/config"
	"github.com/DeafMist/press-radar/internal/dedupe"
	"github.com/DeafMist/press-radar/internal/elasticsearch"
	"github.com/DeafMist/press-radar/internal/logger"
	"github.com/DeafMist/press-radar/internal/models"
	"github.com/DeafMist/press-radar/internal/records"
	"github.com/DeafMist/press-radar/internal/terms"
)

type releaseIndexer interface {
	IndexRelease(ctx context.Context, doc models.PressRelease) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.Connect(ctx, cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log, elasticsearch.DefaultBackoff)
	if err != nil {
		log.Error("connect elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(readerConfig(cfg))
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := &kafka.Writer{
		Addr:        kafka.TCP(cfg.KafkaBrokers...),
		Topic:       dlqTopic,
		MaxAttempts: 3,
	}
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, cache, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			if !sendToDLQ(ctx, log, dlqWriter, msg, err, time.Second) {
				if ctx.Err() != nil {
					return
				}
				// leave uncommitted so the message is redelivered after a restart
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

func readerConfig(cfg *config.Worker) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: cfg.CommitInterval,
	}
}

// processMessage validates one raw press release with the record store's
// schema rules, enriches it and indexes it unless an identical release was
// indexed recently.
func processMessage(ctx context.Context, log *slog.Logger, idx releaseIndexer, cache *dedupe.Cache, cfg *config.Worker, msg kafka.Message) error {
	var raw models.RawRecord
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		return fmt.Errorf("decode release: %w", err)
	}

	raw.Title = strings.TrimSpace(raw.Title)
	raw.Text = strings.TrimSpace(raw.Text)
	generated := raw.Title == "" && raw.Text != ""
	if generated {
		raw.Title = terms.GenerateTitleFromText(raw.Text, 10)
	}
	if strings.TrimSpace(raw.ID) == "" {
		ts, err := records.ParseTimestamp(raw.Timestamp)
		if err != nil {
			return &records.SchemaError{Index: int(msg.Offset), Field: "timestamp", Reason: err.Error()}
		}
		raw.ID = terms.BuildDocumentID(strings.TrimSpace(raw.Source), raw.Title+"|"+raw.Text, ts)
	}

	rec, err := records.ParseRaw(int(msg.Offset), raw)
	if err != nil {
		return err
	}

	key := dedupe.Key(rec.Source, rec.Title, rec.Text)
	if cache.IsSeen(key) {
		log.Debug("duplicate release", slog.String("id", rec.ID))
		return nil
	}

	doc := models.PressRelease{
		ID:        rec.ID,
		Title:     rec.Title,
		Text:      rec.Text,
		Timestamp: rec.Timestamp,
		Source:    rec.Source,
		Topics:    rec.Topics,
		Keywords:  terms.ExtractKeywords(rec.Title+" "+terms.CleanText(rec.Text), cfg.KeywordLimit, cfg.KeywordMinLength),
		URLs:      terms.ExtractURLs(rec.Text),

		TitleGenerated: generated,
	}

	if err := idx.IndexRelease(ctx, doc); err != nil {
		return err
	}

	cache.MarkSeen(key)
	log.Info("indexed release",
		slog.String("id", doc.ID),
		slog.String("source", doc.Source),
		slog.String("title", doc.Title),
	)
	return nil
}

// sendToDLQ forwards a failed message with its error context, retrying with
// exponential backoff. It reports whether the write succeeded.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error, initial time.Duration) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: "dlq_id", Value: []byte(uuid.NewString())},
			kafka.Header{Key: "original_topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	const attempts = 5
	for attempt := range attempts {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}
		if attempt == attempts-1 {
			break
		}

		backoff := initial << uint(attempt)
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}

	log.Error("DLQ write exhausted retries, message left uncommitted",
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)
	return false
}
