package kafka

import (
	"bytes"
	"context"
	"errors"
	"iter"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/metrics"
	"github.com/vladislavdragonenkov/inventory/internal/service/orders"
)

// Исходы обработки сообщения импорта для метрик.
const (
	ImportOutcomeImported = "imported"
	ImportOutcomeRejected = "rejected"
	ImportOutcomeFailed   = "failed"
)

// BatchUpserter — потребитель ленивой последовательности заказов.
type BatchUpserter interface {
	UpsertBatch(ctx context.Context, source iter.Seq2[domain.Order, error]) error
}

// OrderImporter превращает сообщения топика импорта (JSON-массив заказов) в пакетный upsert.
type OrderImporter struct {
	upserter BatchUpserter
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
}

// NewOrderImporter создаёт обработчик сообщений импорта.
func NewOrderImporter(upserter BatchUpserter, m *metrics.OrderMetrics, logger *log.Entry) *OrderImporter {
	if logger == nil {
		logger = log.WithField("component", "kafka-importer")
	}
	return &OrderImporter{upserter: upserter, metrics: m, logger: logger}
}

// Handle обрабатывает одно сообщение. Ошибки валидации и разбора помечаются Permanent:
// повтор их не исправит, сообщение сразу уходит в DLQ.
func (i *OrderImporter) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	err := i.upserter.UpsertBatch(ctx, orders.DecodeJSONArray(bytes.NewReader(message.Value)))
	if err == nil {
		i.metrics.RecordImportMessage(ImportOutcomeImported)
		return nil
	}

	fields := log.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	}
	if isRejection(err) {
		i.metrics.RecordImportMessage(ImportOutcomeRejected)
		i.logger.WithError(err).WithFields(fields).Warn("order import rejected")
		return Permanent(err)
	}

	i.metrics.RecordImportMessage(ImportOutcomeFailed)
	i.logger.WithError(err).WithFields(fields).Error("order import failed")
	return err
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrBatchValidation) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrMalformedInput)
}
