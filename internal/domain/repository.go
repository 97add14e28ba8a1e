package domain

import (
	"context"

	"github.com/google/uuid"
)

// OrderStore описывает требования к постоянному хранилищу заказов.
// Реализации не обязаны быть безопасными для одновременного использования одной
// логической сессией из нескольких операций; каждый открытый курсор держит своё соединение.
type OrderStore interface {
	// FindByID возвращает заказ или ErrOrderNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (Order, error)
	// FindByIDs возвращает найденные заказы; отсутствующие идентификаторы просто не попадают в map.
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Order, error)
	// Find применяет предикаты, сортирует по дате заказа и отдаёт страницу Offset/Limit.
	Find(ctx context.Context, query OrderQuery) ([]Order, error)
	// Aggregate группирует отфильтрованные заказы по (дата, товар) и сортирует группы.
	Aggregate(ctx context.Context, preds []Predicate) ([]AggregateBucket, error)
	// Stream открывает ленивый курсор по отфильтрованным заказам без сортировки.
	Stream(ctx context.Context, preds []Predicate) (OrderCursor, error)
	// Insert сохраняет новый заказ.
	Insert(ctx context.Context, order Order) error
	// Update перезаписывает изменяемые поля существующего заказа или возвращает ErrOrderNotFound.
	Update(ctx context.Context, order Order) error
	// Remove удаляет заказ или возвращает ErrOrderNotFound.
	Remove(ctx context.Context, id uuid.UUID) error
	// SaveAll атомарно применяет все вставки и обновления: либо всё, либо ничего.
	SaveAll(ctx context.Context, changes ChangeSet) error
	// Seed генерирует count синтетических заказов средствами хранилища.
	Seed(ctx context.Context, count int) error
}

// OrderCursor — ленивая однопроходная последовательность заказов.
// Вызывающая сторона обязана дочитать курсор или закрыть его.
type OrderCursor interface {
	// Next продвигает курсор; false означает конец данных или ошибку (см. Err).
	Next(ctx context.Context) bool
	// Order возвращает текущую запись после успешного Next.
	Order() Order
	// Err возвращает ошибку, прервавшую чтение.
	Err() error
	// Close освобождает соединение; повторный вызов безопасен.
	Close() error
}

// ChangeSet — набор изменений одного чанка пакетного upsert.
type ChangeSet struct {
	Inserts []Order
	Updates []Order
}

// Empty сообщает, нет ли в наборе изменений.
func (c ChangeSet) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0
}
