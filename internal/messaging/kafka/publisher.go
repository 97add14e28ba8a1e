package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

// EventPublisher публикует доменные события заказов в топик событий.
type EventPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

var _ domain.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher создаёт паблишер; пустой topic заменяется на TopicOrderEvents.
func NewEventPublisher(producer *Producer, topic string) *EventPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &EventPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *EventPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka event publisher is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.producer.SendJSON(p.topic, eventKey(event), newOrderEvent(event, p.now()), map[string]string{
		HeaderEventType: string(event.Type),
	})
}
