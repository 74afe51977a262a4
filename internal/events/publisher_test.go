package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"estimate-api/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testQuote() *model.PersistedQuote {
	return &model.PersistedQuote{
		ID:             uuid.MustParse("0190f3a4-5b6c-7d8e-9f00-112233445566"),
		IdempotencyKey: "key-1",
		CreatedAt:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		QuoteBreakdown: model.QuoteBreakdown{
			BaseItemID: 1,
			ItemName:   "Strawberry Cream Cake",
			Options:    []model.OptionLine{{OptionID: 1}, {OptionID: 2}},
			FinalTotal: 85800,
		},
	}
}

func TestKafkaPublisher_PublishQuoteCreated(t *testing.T) {
	writer := &fakeWriter{}
	publisher := NewKafkaPublisher(writer, zerolog.Nop())

	err := publisher.PublishQuoteCreated(context.Background(), testQuote())

	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "0190f3a4-5b6c-7d8e-9f00-112233445566", string(msg.Key))
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte(TypeQuoteCreated)}}, msg.Headers)

	var event QuoteCreated
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, TypeQuoteCreated, event.Type)
	assert.Equal(t, "key-1", event.IdempotencyKey)
	assert.Equal(t, 2, event.OptionCount)
	assert.Equal(t, int64(85800), event.FinalTotal)
	assert.True(t, event.CreatedAt.Equal(testQuote().CreatedAt))
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	publisher := NewKafkaPublisher(writer, zerolog.Nop())

	err := publisher.PublishQuoteCreated(context.Background(), testQuote())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaPublisher_Close(t *testing.T) {
	writer := &fakeWriter{}
	require.NoError(t, NewKafkaPublisher(writer, zerolog.Nop()).Close())
	assert.True(t, writer.closed)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"k1:9092", "k2:9092"}, "quotes.created")
	defer w.Close()

	assert.Equal(t, "quotes.created", w.Topic)
	assert.NotNil(t, w.Addr)
	assert.True(t, w.AllowAutoTopicCreation)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishQuoteCreated(context.Background(), testQuote()))
	assert.NoError(t, p.Close())
}
