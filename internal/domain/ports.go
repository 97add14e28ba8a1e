package domain

import (
	"context"

	"github.com/google/uuid"
)

// EventType — тип события об изменении заказов.
type EventType string

const (
	EventOrderCreated        EventType = "order.created"
	EventOrderUpdated        EventType = "order.updated"
	EventOrderDeleted        EventType = "order.deleted"
	EventOrdersBatchUpserted EventType = "orders.batch_upserted"
)

// OrderEvent описывает зафиксированное изменение; публикуется только после успешного сохранения.
type OrderEvent struct {
	Type    EventType
	OrderID uuid.UUID
	Order   *Order
	// Created/Updated заполняются для пакетных событий.
	Created int
	Updated int
}

// EventPublisher публикует события об изменениях наружу (например, в Kafka).
// Ошибка публикации не откатывает уже выполненное сохранение.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}
