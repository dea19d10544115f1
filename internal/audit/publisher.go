package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher appends entries to the store and optionally fans them out to a
// Kafka topic for downstream consumers. The store write is the critical path:
// the verification workflow must not proceed if the decision cannot be
// recorded. The Kafka produce is fire-and-forget with logged failures.
type Publisher struct {
	store    Store
	producer *kgo.Client
	topic    string
	logger   *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithKafka enables the fan-out. The client lifecycle is managed by the
// caller.
func WithKafka(producer *kgo.Client, topic string) Option {
	return func(p *Publisher) {
		p.producer = producer
		p.topic = topic
	}
}

func NewPublisher(store Store, opts ...Option) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit records a decision. An error means the entry was not persisted and the
// calling workflow must fail.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := p.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	if p.producer != nil {
		payload, err := json.Marshal(entry)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to marshal audit entry for fan-out",
				"entry_id", entry.ID,
				"error", err,
			)
			return nil
		}
		record := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(entry.ReportKey),
			Value: payload,
		}
		p.producer.Produce(ctx, record, func(_ *kgo.Record, err error) {
			if err != nil {
				p.logger.Error("audit fan-out produce failed",
					"entry_id", entry.ID.String(),
					"error", err,
				)
			}
		})
	}
	return nil
}

// ListRecent exposes the store for the admin surface.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	return p.store.ListRecent(ctx, limit)
}
