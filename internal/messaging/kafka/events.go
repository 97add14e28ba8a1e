package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

// Топики сервиса.
const (
	TopicOrderEvents     = "inv.order.events"
	TopicOrderImport     = "inv.order.import"
	TopicDeadLetterQueue = "inv.dlq"
)

// Заголовки сообщений.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
)

// OrderEvent — тело сообщения в топике событий заказов.
type OrderEvent struct {
	EventType domain.EventType `json:"event_type"`
	OrderID   string           `json:"order_id,omitempty"`
	Order     *domain.Order    `json:"order,omitempty"`
	Created   int              `json:"created,omitempty"`
	Updated   int              `json:"updated,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

func newOrderEvent(event domain.OrderEvent, now time.Time) OrderEvent {
	msg := OrderEvent{
		EventType: event.Type,
		Order:     event.Order,
		Created:   event.Created,
		Updated:   event.Updated,
		Timestamp: now.UTC(),
	}
	if event.OrderID != uuid.Nil {
		msg.OrderID = event.OrderID.String()
	}
	return msg
}

// eventKey — ключ партиционирования: идентификатор заказа, для пакетных событий тип события.
func eventKey(event domain.OrderEvent) string {
	if event.OrderID != uuid.Nil {
		return event.OrderID.String()
	}
	return string(event.Type)
}
