package orders

import (
	"context"
	"iter"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/metrics"
)

// SearchStream открывает ленивый однопроходный курсор по отфильтрованным заказам.
// Порядок не гарантируется; критерии не валидируются, инвертированный диапазон дат даёт пустой поток.
// Вызывающая сторона обязана дочитать курсор или закрыть его.
func (s *Service) SearchStream(ctx context.Context, criteria domain.StreamCriteria) (domain.OrderCursor, error) {
	cursor, err := s.store.Stream(ctx, criteria.Predicates())
	if err != nil {
		return nil, err
	}
	return &countingCursor{OrderCursor: cursor, metrics: s.metrics}, nil
}

// countingCursor учитывает выданные записи в метриках при закрытии.
type countingCursor struct {
	domain.OrderCursor
	metrics  *metrics.OrderMetrics
	yielded  int
	reported bool
}

func (c *countingCursor) Next(ctx context.Context) bool {
	if c.OrderCursor.Next(ctx) {
		c.yielded++
		return true
	}
	c.report()
	return false
}

func (c *countingCursor) Close() error {
	c.report()
	return c.OrderCursor.Close()
}

func (c *countingCursor) report() {
	if c.reported {
		return
	}
	c.reported = true
	c.metrics.AddStreamed(c.yielded)
}

// All превращает курсор в последовательность для range-over-func.
// Ошибка чтения выдаётся последним элементом; курсор закрывается в любом случае.
func All(ctx context.Context, cursor domain.OrderCursor) iter.Seq2[domain.Order, error] {
	return func(yield func(domain.Order, error) bool) {
		defer cursor.Close()
		for cursor.Next(ctx) {
			if !yield(cursor.Order(), nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(domain.Order{}, err)
		}
	}
}
