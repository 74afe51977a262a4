// Package events publishes notifications about stored quotes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"estimate-api/internal/model"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// TypeQuoteCreated is the event type for newly stored quotes.
const TypeQuoteCreated = "quote.created"

// QuoteCreated is the payload written when a submission stores a new quote.
// Replays of an existing key do not produce an event.
type QuoteCreated struct {
	Type           string    `json:"type"`
	QuoteID        string    `json:"quoteId"`
	IdempotencyKey string    `json:"idempotencyKey"`
	BaseItemID     int64     `json:"baseItemId"`
	ItemName       string    `json:"itemName"`
	OptionCount    int       `json:"optionCount"`
	FinalTotal     int64     `json:"finalTotal"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewQuoteCreated builds the event for q.
func NewQuoteCreated(q *model.PersistedQuote) QuoteCreated {
	return QuoteCreated{
		Type:           TypeQuoteCreated,
		QuoteID:        q.ID.String(),
		IdempotencyKey: q.IdempotencyKey,
		BaseItemID:     q.BaseItemID,
		ItemName:       q.ItemName,
		OptionCount:    len(q.Options),
		FinalTotal:     q.FinalTotal,
		CreatedAt:      q.CreatedAt,
	}
}

// Publisher delivers quote events.
type Publisher interface {
	PublishQuoteCreated(ctx context.Context, q *model.PersistedQuote) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by quote id.
type KafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafkaWriter creates a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewKafkaPublisher wraps writer.
func NewKafkaPublisher(writer messageWriter, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "kafka_publisher").Logger(),
	}
}

func (p *KafkaPublisher) PublishQuoteCreated(ctx context.Context, q *model.PersistedQuote) error {
	payload, err := json.Marshal(NewQuoteCreated(q))
	if err != nil {
		return fmt.Errorf("failed to encode quote event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(q.ID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeQuoteCreated)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish quote event: %w", err)
	}

	p.logger.Debug().Str("quote_id", q.ID.String()).Msg("quote event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) PublishQuoteCreated(context.Context, *model.PersistedQuote) error { return nil }

func (NopPublisher) Close() error { return nil }
