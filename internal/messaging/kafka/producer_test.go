package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

func newMockProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	sp := mocks.NewSyncProducer(t, nil)
	t.Cleanup(func() { _ = sp.Close() })
	return newProducer(sp), sp
}

func encoded(t *testing.T, e sarama.Encoder) string {
	t.Helper()
	b, err := e.Encode()
	require.NoError(t, err)
	return string(b)
}

func TestRecord_ToSaramaSortsHeaders(t *testing.T) {
	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	msg := Record{
		Topic:   TopicOrderImport,
		Key:     "k",
		Value:   []byte("[]"),
		Headers: map[string]string{HeaderRetryCount: "2", HeaderEventType: "order.created"},
	}.toSarama(now)

	assert.Equal(t, TopicOrderImport, msg.Topic)
	assert.Equal(t, now, msg.Timestamp)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, HeaderEventType, string(msg.Headers[0].Key))
	assert.Equal(t, HeaderRetryCount, string(msg.Headers[1].Key))
}

func TestProducer_SendJSON(t *testing.T) {
	producer, sp := newMockProducer(t)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "key", encoded(t, msg.Key))
		assert.JSONEq(t, `{"a":"b"}`, encoded(t, msg.Value))
		return nil
	})

	require.NoError(t, producer.SendJSON(TopicOrderEvents, "key", map[string]string{"a": "b"}, nil))
}

func TestProducer_Errors(t *testing.T) {
	producer, sp := newMockProducer(t)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.Send(Record{Topic: TopicOrderEvents, Value: []byte("{}")})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.Error(t, producer.SendJSON(TopicOrderEvents, "key", make(chan int), nil))
}

func TestNewProducer_Unreachable(t *testing.T) {
	_, err := NewProducer([]string{"127.0.0.1:1"})
	require.Error(t, err)
}

func TestNewOrderEvent(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.FixedZone("", 3600))
	id := uuid.New()
	order := domain.Order{ID: id, LocationCode: "Lisbon-001", Quantity: 3}

	single := newOrderEvent(domain.OrderEvent{Type: domain.EventOrderCreated, OrderID: id, Order: &order}, now)
	assert.Equal(t, id.String(), single.OrderID)
	assert.Equal(t, 3, single.Order.Quantity)
	assert.Equal(t, time.UTC, single.Timestamp.Location())

	batch := newOrderEvent(domain.OrderEvent{Type: domain.EventOrdersBatchUpserted, Created: 2, Updated: 1}, now)
	assert.Empty(t, batch.OrderID)
	assert.Equal(t, 2, batch.Created)
	assert.Equal(t, string(domain.EventOrdersBatchUpserted), eventKey(domain.OrderEvent{Type: domain.EventOrdersBatchUpserted}))
}

func TestEventPublisher_PublishOrderEvent(t *testing.T) {
	producer, sp := newMockProducer(t)
	id := uuid.New()

	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, TopicOrderEvents, msg.Topic)
		assert.Equal(t, id.String(), encoded(t, msg.Key))

		var event OrderEvent
		require.NoError(t, json.Unmarshal([]byte(encoded(t, msg.Value)), &event))
		assert.Equal(t, domain.EventOrderUpdated, event.EventType)
		require.Len(t, msg.Headers, 1)
		assert.Equal(t, string(domain.EventOrderUpdated), string(msg.Headers[0].Value))
		return nil
	})

	publisher := NewEventPublisher(producer, "")
	require.NoError(t, publisher.PublishOrderEvent(context.Background(), domain.OrderEvent{Type: domain.EventOrderUpdated, OrderID: id}))
}

func TestEventPublisher_Errors(t *testing.T) {
	var nilPublisher *EventPublisher
	require.Error(t, nilPublisher.PublishOrderEvent(context.Background(), domain.OrderEvent{}))

	producer, _ := newMockProducer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewEventPublisher(producer, "custom").PublishOrderEvent(ctx, domain.OrderEvent{Type: domain.EventOrderDeleted})
	require.ErrorIs(t, err, context.Canceled)
}
