package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// MessageHandler обрабатывает одно сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку обработчика как неповторяемую: сообщение сразу уходит в DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var perr *permanentError
	return errors.As(err, &perr)
}

// RetryPolicy задаёт число попыток обработки и паузы между ними.
// Пауза начинается с BaseDelay и удваивается до MaxDelay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = max(def.MaxDelay, p.BaseDelay)
	}
	return p
}

// Backoff возвращает паузу после неудачной попытки с номером attempt (с нуля).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for range attempt {
		if delay >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		delay *= 2
	}
	return min(delay, p.MaxDelay)
}

// ConsumerConfig — параметры consumer group.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	Retry   RetryPolicy
	// DLQ получает сообщения, обработка которых не удалась; nil отключает DLQ.
	DLQ *Producer
}

// Consumer читает топики в составе consumer group и передаёт сообщения обработчику
// с повторами и отправкой в DLQ.
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string
	proc   *processor
	logger *log.Entry
	wg     sync.WaitGroup
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return newConsumer(group, cfg, handler), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig, handler MessageHandler) *Consumer {
	logger := log.WithField("component", "kafka-consumer")
	return &Consumer{
		group:  group,
		topics: cfg.Topics,
		proc:   newProcessor(handler, cfg.Retry, cfg.DLQ, logger),
		logger: logger,
	}
}

// Start запускает чтение в фоне до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		// Consume возвращается при каждом rebalance
		for ctx.Err() == nil {
			err := c.group.Consume(ctx, c.topics, c.proc)
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			if err != nil {
				c.logger.WithError(err).Error("error from consumer")
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// processor реализует sarama.ConsumerGroupHandler.
type processor struct {
	handler MessageHandler
	retry   RetryPolicy
	dlq     *Producer
	logger  *log.Entry
	sleep   func(ctx context.Context, d time.Duration) bool
	now     func() time.Time
}

func newProcessor(handler MessageHandler, retry RetryPolicy, dlq *Producer, logger *log.Entry) *processor {
	return &processor{
		handler: handler,
		retry:   retry.withDefaults(),
		dlq:     dlq,
		logger:  logger,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

func (p *processor) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (p *processor) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (p *processor) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok || msg == nil {
				return nil
			}
			if err := p.process(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.WithError(err).WithFields(messageFields(msg)).Error("message processing failed after all retries")
				// следующие сообщения не отмечаются, сессия перезапускается с этого offset
				return fmt.Errorf("process %s/%d offset %d: %w", msg.Topic, msg.Partition, msg.Offset, err)
			}
			session.MarkMessage(msg, "")
		}
	}
}

// process вызывает обработчик с повторами. Счёт попыток продолжается с заголовка
// x-retry-count, поэтому возвращённое из DLQ сообщение получает хотя бы одну попытку.
// nil означает, что сообщение обработано или принято DLQ.
func (p *processor) process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	retryCount := retryCountOf(msg)
	attempts := max(p.retry.MaxRetries-retryCount, 1)

	var err error
	for attempt := range attempts {
		if err = p.handler(ctx, msg); err == nil {
			return nil
		}
		retryCount++
		if IsPermanent(err) || attempt == attempts-1 {
			break
		}

		delay := p.retry.Backoff(attempt)
		p.logger.WithError(err).WithFields(messageFields(msg)).WithFields(log.Fields{
			"retry_count": retryCount,
			"delay":       delay,
		}).Warn("message processing failed, will retry")
		if !p.sleep(ctx, delay) {
			return ctx.Err()
		}
	}
	if ctx.Err() != nil || p.dlq == nil {
		return err
	}

	entry := newDLQMessage(msg, err, retryCount, p.now())
	if dlqErr := p.dlq.SendJSON(TopicDeadLetterQueue, entry.OriginalKey, entry, entry.headers()); dlqErr != nil {
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}
	p.logger.WithFields(messageFields(msg)).WithFields(log.Fields{
		"retry_count": retryCount,
		"permanent":   IsPermanent(err),
	}).Info("message sent to DLQ")
	return nil
}

func retryCountOf(msg *sarama.ConsumerMessage) int {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == HeaderRetryCount {
			if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

func messageFields(msg *sarama.ConsumerMessage) log.Fields {
	return log.Fields{"topic": msg.Topic, "partition": msg.Partition, "offset": msg.Offset}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
