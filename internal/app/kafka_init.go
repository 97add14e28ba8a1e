package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/inventory/internal/metrics"
	"github.com/vladislavdragonenkov/inventory/internal/service/orders"
)

// kafkaRuntime объединяет producer событий и consumer топика импорта.
type kafkaRuntime struct {
	producer *kafka.Producer
	consumer *kafka.Consumer
}

// initKafkaProducer создаёт producer, если брокеры заданы.
// Возвращает nil, nil при пустом списке брокеров.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// startImportConsumer подписывает импортёр на топик импорта; ошибки импорта уходят в DLQ через producer.
func startImportConsumer(ctx context.Context, cfg Config, producer *kafka.Producer, svc *orders.Service, m *metrics.OrderMetrics, logger *log.Entry) (*kafka.Consumer, error) {
	importer := kafka.NewOrderImporter(svc, m, logger.WithField("component", "kafka-importer"))

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Brokers(),
		GroupID: cfg.KafkaGroupID,
		Topics:  []string{cfg.KafkaImportTopic},
		Retry:   kafka.RetryPolicy{MaxRetries: cfg.KafkaMaxRetries},
		DLQ:     producer,
	}, importer.Handle)
	if err != nil {
		return nil, err
	}
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Stop()
		return nil, fmt.Errorf("start import consumer: %w", err)
	}
	return consumer, nil
}

// closeKafka останавливает consumer и закрывает producer; nil-значения пропускаются.
func closeKafka(rt kafkaRuntime, logger *log.Entry) {
	if rt.consumer != nil {
		if err := rt.consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		} else {
			logger.Info("kafka consumer stopped")
		}
	}

	if rt.producer == nil {
		return
	}
	if err := rt.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
