package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"medsched/pkg/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
	HeaderTimestamp = "timestamp"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
	source string
	log    *logger.Logger
	closed bool
	mu     sync.Mutex
}

// NewPublisher builds a Kafka-backed publisher, or a no-op one when no
// brokers are configured so that single-node deployments run without Kafka.
func NewPublisher(brokers []string, topic, source string, log *logger.Logger) Publisher {
	if len(brokers) == 0 {
		log.Info("Event publishing disabled: no Kafka brokers configured")
		return noopPublisher{}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // hash by key keeps per-window ordering
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error("Kafka writer error", "message", msg, "args", args)
		}),
	}

	log.Info("Event publisher initialized", "topic", topic, "brokers", brokers)
	return &kafkaPublisher{
		writer: writer,
		source: source,
		log:    log,
	}
}

// Publish emits the event without failing the surrounding request: store
// state is the source of truth and events are derived signals.
func (p *kafkaPublisher) Publish(ctx context.Context, event Event) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to encode event", "type", event.Type, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(uuid.New().String())},
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderSource, Value: []byte(p.source)},
			{Key: HeaderTimestamp, Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Failed to publish event",
			"type", event.Type,
			"key", event.Key,
			"error", err,
		)
	}
}

func (p *kafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) {}
func (noopPublisher) Close() error                   { return nil }
