// Package events publishes notifications about completed backtest runs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"backtester/internal/domain"
)

// EventRunCompleted is the type tag carried by every run event.
const EventRunCompleted = "backtest.completed"

// RunEvent is the JSON payload written for each completed run.
type RunEvent struct {
	Type string     `json:"type"`
	Run  domain.Run `json:"run"`
}

// Publisher announces completed runs.
type Publisher interface {
	PublishRun(ctx context.Context, run domain.Run) error
	Close() error
}

// Compile-time interface checks.
var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*KafkaPublisher)(nil)
)

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) PublishRun(context.Context, domain.Run) error { return nil }
func (NopPublisher) Close() error                                 { return nil }

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes run events to a Kafka topic, keyed by symbol so that
// events for one symbol stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *slog.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
		BatchTimeout:           50 * time.Millisecond,
	}
	slog.Default().Info("kafka publisher created", "brokers", brokers, "topic", topic)
	return newKafkaPublisher(writer, topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		log:    slog.Default().With("component", "events"),
	}
}

// PublishRun writes one RunEvent for run.
func (p *KafkaPublisher) PublishRun(ctx context.Context, run domain.Run) error {
	msg, err := encodeRun(run)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing run %s to %s: %w", run.ID, p.topic, err)
	}
	p.log.Debug("run event published", "run_id", run.ID, "topic", p.topic)
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encodeRun(run domain.Run) (kafka.Message, error) {
	value, err := json.Marshal(RunEvent{Type: EventRunCompleted, Run: run})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding run %s: %w", run.ID, err)
	}
	return kafka.Message{
		Key:   []byte(run.Symbol),
		Value: value,
		Time:  run.CreatedAt,
	}, nil
}
