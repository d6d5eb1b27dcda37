// Package kafka publishes mainshock/candidate pairs to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/seismic-swarm-etl/internal/config"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/observability"
)

// messageWriter is the subset of *kafkago.Writer the adapter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces pair messages to the configured topic.
// It implements pipeline.PairSink.
type Writer struct {
	writer    messageWriter
	batchSize int
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// PairMessage is the JSON value of each published message.
type PairMessage struct {
	domain.Pair
	ProcessedAt time.Time `json:"processed_at"`
}

// NewWriter creates a Kafka producer for the pairs topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaPairsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, metrics: metrics, logger: logger}
}

// LoadBatch serializes and publishes pairs in chunks of the configured batch
// size. Messages are keyed by pair key so a re-run lands on the same
// partitions. The first failing chunk aborts the call.
func (w *Writer) LoadBatch(ctx context.Context, pairs []domain.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	processedAt := domain.Now()
	size := w.batchSize
	if size < 1 {
		size = len(pairs)
	}

	for start := 0; start < len(pairs); start += size {
		end := min(start+size, len(pairs))
		msgs := make([]kafkago.Message, 0, end-start)
		for _, p := range pairs[start:end] {
			msg, err := serializeToMessage(p, processedAt)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish pairs %d-%d: %w", start, end-1, err)
		}
		w.metrics.PairsPublished.Add(float64(len(msgs)))
		w.logger.Debug("published pair batch", "from", start, "count", len(msgs))
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Pair into a Kafka message.
func serializeToMessage(p domain.Pair, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(PairMessage{Pair: p, ProcessedAt: processedAt})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize pair %s: %w", p.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(p.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "mainshock_id", Value: []byte(strconv.FormatInt(p.Mainshock.ID, 10))},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
