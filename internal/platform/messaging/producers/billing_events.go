package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/config"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// Billing event types consumed by the external receipt-printing and audit
// pipelines. Those consumers live outside this service; the producer is our
// side of that interface.
const (
	EventTypePaymentRecorded = "payment.recorded"
	EventTypeRefundRecorded  = "refund.recorded"
)

// PaymentRecordedEvent is emitted after the ledger gateway accepts a payment.
type PaymentRecordedEvent struct {
	EventType     string                `json:"event_type"`
	PatronID      int64                 `json:"patron_id"`
	Payments      []ledger.PaymentEntry `json:"payments"`
	PaymentMethod string                `json:"payment_method"`
	TotalApplied  decimal.Decimal       `json:"total_applied"`
	Unapplied     decimal.Decimal       `json:"unapplied"`
	CorrelationID string                `json:"correlation_id,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

// RefundRecordedEvent is emitted after the ledger gateway accepts a refund.
type RefundRecordedEvent struct {
	EventType     string          `json:"event_type"`
	PatronID      int64           `json:"patron_id"`
	TransactionID int64           `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// BillingEventProducer publishes billing events to the event stream.
type BillingEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewBillingEventProducer creates the billing event producer and ensures the
// topic exists.
func NewBillingEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*BillingEventProducer, error) {
	if cfg.BillingTopic == "" {
		return nil, fmt.Errorf("kafka billing topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for billing event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.BillingTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure billing topic %s exists: %w", cfg.BillingTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.BillingTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Events are advisory; never block the user's mutation
		WriteTimeout: cfg.WriteMaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write billing events asynchronously", "topic", cfg.BillingTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote billing events asynchronously", "topic", cfg.BillingTopic, "count", len(messages))
			}
		},
	}

	return &BillingEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.BillingTopic,
	}, nil
}

// Publish serializes and writes one event keyed by patron.
func (p *BillingEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal billing event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish billing event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish billing event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published billing event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *BillingEventProducer) Close() error {
	p.logger.Info("Closing billing event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close billing event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
