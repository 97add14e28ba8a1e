// Package orders реализует движки поиска, потоковой выдачи и пакетной записи заказов,
// а также одиночные CRUD-операции поверх domain.OrderStore.
package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/metrics"
	"github.com/vladislavdragonenkov/inventory/internal/validation"
)

const (
	// DefaultBatchSize — размер чанка пакетного upsert по умолчанию.
	DefaultBatchSize = 1000
	// MaxSeedCount — верхняя граница количества синтетических заказов за один вызов.
	MaxSeedCount = 1_000_000
)

// Service — точка входа бизнес-операций над заказами.
// Одна операция выполняется последовательно; параллелизм обеспечивается вызывающей стороной.
type Service struct {
	store     domain.OrderStore
	publisher domain.EventPublisher
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
	batchSize int
	newID     func() uuid.UUID
}

// Option настраивает Service.
type Option func(*Service)

// WithBatchSize задаёт размер чанка; значения <= 0 игнорируются.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithPublisher подключает публикацию событий после успешных изменений.
func WithPublisher(publisher domain.EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер компонента.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт сервис заказов поверх хранилища.
func NewService(store domain.OrderStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		logger:    log.New().WithField("component", "orders"),
		batchSize: DefaultBatchSize,
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchSize возвращает действующий размер чанка.
func (s *Service) BatchSize() int {
	return s.batchSize
}

// GetByID возвращает заказ или domain.ErrOrderNotFound.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.store.FindByID(ctx, id)
}

// Create проверяет заказ и сохраняет его под новым идентификатором.
// Переданный вызывающей стороной ID игнорируется.
func (s *Service) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := s.validateOrder(order, metrics.OperationCreate); err != nil {
		return domain.Order{}, err
	}

	order.ID = s.newID()
	if err := s.store.Insert(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.logger.WithField("order_id", order.ID).Debug("order created")
	s.publish(ctx, domain.OrderEvent{Type: domain.EventOrderCreated, OrderID: order.ID, Order: &order})
	return order, nil
}

// Update проверяет входные данные и перезаписывает все изменяемые поля заказа id.
// Ошибка валидации возвращается раньше, чем проверяется существование заказа.
func (s *Service) Update(ctx context.Context, id uuid.UUID, order domain.Order) (domain.Order, error) {
	if err := s.validateOrder(order, metrics.OperationUpdate); err != nil {
		return domain.Order{}, err
	}

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	current.ApplyFrom(order)
	if err := s.store.Update(ctx, current); err != nil {
		return domain.Order{}, err
	}

	s.logger.WithField("order_id", id).Debug("order updated")
	s.publish(ctx, domain.OrderEvent{Type: domain.EventOrderUpdated, OrderID: id, Order: &current})
	return current, nil
}

// Delete удаляет заказ или возвращает domain.ErrOrderNotFound.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}

	s.logger.WithField("order_id", id).Debug("order deleted")
	s.publish(ctx, domain.OrderEvent{Type: domain.EventOrderDeleted, OrderID: id})
	return nil
}

// Seed генерирует count синтетических заказов средствами хранилища.
func (s *Service) Seed(ctx context.Context, count int) error {
	if count < 1 || count > MaxSeedCount {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidSeedCount, count)
	}
	if err := s.store.Seed(ctx, count); err != nil {
		return err
	}

	s.logger.WithField("count", count).Info("orders seeded")
	return nil
}

func (s *Service) validateOrder(order domain.Order, operation string) error {
	violations := validation.ValidateOrder(order)
	if len(violations) == 0 {
		return nil
	}
	s.metrics.RecordValidationFailure(operation)
	return domain.NewValidationError(violations)
}

// publish отправляет событие, не влияя на результат уже выполненной операции.
func (s *Service) publish(ctx context.Context, event domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishOrderEvent(ctx, event)
	s.metrics.RecordEventPublished(string(event.Type), err)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": event.Type,
			"order_id":   event.OrderID,
		}).Warn("failed to publish order event")
	}
}
