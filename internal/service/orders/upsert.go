package orders

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/metrics"
	"github.com/vladislavdragonenkov/inventory/internal/validation"
)

// upsertAccumulator хранит состояние одного вызова UpsertBatch.
type upsertAccumulator struct {
	size     int
	failures []domain.RecordFailure
	chunk    []domain.Order
}

func (a *upsertAccumulator) reject(index int, order domain.Order, violations []domain.Violation) {
	a.failures = append(a.failures, domain.RecordFailure{
		Index:      index,
		OrderID:    order.ID,
		Violations: violations,
	})
}

func (a *upsertAccumulator) add(order domain.Order) (ready bool) {
	a.chunk = append(a.chunk, order)
	return len(a.chunk) >= a.size
}

func (a *upsertAccumulator) take() []domain.Order {
	chunk := a.chunk
	a.chunk = make([]domain.Order, 0, a.size)
	return chunk
}

// UpsertBatch читает заказы из последовательности и создаёт или обновляет их чанками.
//
// Невалидные записи не сохраняются: их нарушения накапливаются, а чтение продолжается.
// Когда набирается полный чанк и к этому моменту есть хотя бы одно нарушение, операция
// прерывается с *domain.BatchValidationError; ранее сохранённые чанки остаются в хранилище.
// Последний неполный чанк сохраняется даже при накопленных нарушениях, и тогда
// операция завершается без ошибки. Ошибка источника или хранилища прерывает операцию сразу.
func (s *Service) UpsertBatch(ctx context.Context, orders iter.Seq2[domain.Order, error]) error {
	acc := &upsertAccumulator{size: s.batchSize, chunk: make([]domain.Order, 0, s.batchSize)}

	index := 0
	for order, err := range orders {
		if err != nil {
			return fmt.Errorf("read order %d: %w", index, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		current := index
		index++

		if violations := validation.ValidateOrder(order); len(violations) > 0 {
			acc.reject(current, order, violations)
			s.metrics.RecordValidationFailure(metrics.OperationUpsert)
			continue
		}

		if !acc.add(order) {
			continue
		}
		if len(acc.failures) > 0 {
			s.metrics.RecordBatchAborted()
			s.logger.WithFields(log.Fields{
				"records_read": index,
				"failures":     len(acc.failures),
			}).Warn("batch upsert aborted: validation failures")
			return &domain.BatchValidationError{Failures: acc.failures}
		}
		if err := s.flush(ctx, acc.take()); err != nil {
			return err
		}
	}

	if len(acc.chunk) > 0 {
		if len(acc.failures) > 0 {
			s.logger.WithField("failures", len(acc.failures)).
				Warn("saving final chunk despite validation failures")
		}
		if err := s.flush(ctx, acc.take()); err != nil {
			return err
		}
	}
	return nil
}

// flush сохраняет чанк одним вызовом SaveAll.
// Записи с известным ID перезаписываются целиком; остальные вставляются под новым ID.
func (s *Service) flush(ctx context.Context, chunk []domain.Order) error {
	ids := make([]uuid.UUID, 0, len(chunk))
	for _, order := range chunk {
		if order.HasID() {
			ids = append(ids, order.ID)
		}
	}

	existing, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	changes := domain.ChangeSet{
		Inserts: make([]domain.Order, 0, len(chunk)),
		Updates: make([]domain.Order, 0, len(existing)),
	}
	for _, order := range chunk {
		current, ok := existing[order.ID]
		if order.HasID() && ok {
			current.ApplyFrom(order)
			changes.Updates = append(changes.Updates, current)
			continue
		}
		order.ID = s.newID()
		changes.Inserts = append(changes.Inserts, order)
	}

	if err := s.store.SaveAll(ctx, changes); err != nil {
		return err
	}

	s.metrics.RecordChunkFlushed(len(changes.Inserts), len(changes.Updates))
	s.logger.WithFields(log.Fields{
		"created": len(changes.Inserts),
		"updated": len(changes.Updates),
	}).Debug("upsert chunk saved")
	s.publish(ctx, domain.OrderEvent{
		Type:    domain.EventOrdersBatchUpserted,
		Created: len(changes.Inserts),
		Updated: len(changes.Updates),
	})
	return nil
}

// Orders превращает срез в последовательность для UpsertBatch.
func Orders(orders []domain.Order) iter.Seq2[domain.Order, error] {
	return func(yield func(domain.Order, error) bool) {
		for _, order := range orders {
			if !yield(order, nil) {
				return
			}
		}
	}
}
