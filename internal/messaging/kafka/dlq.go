package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// DLQMessage — запись Dead Letter Queue: исходное сообщение и причина отказа.
type DLQMessage struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

func newDLQMessage(msg *sarama.ConsumerMessage, cause error, retryCount int, failedAt time.Time) DLQMessage {
	return DLQMessage{
		OriginalTopic:     msg.Topic,
		OriginalPartition: msg.Partition,
		OriginalOffset:    msg.Offset,
		OriginalKey:       string(msg.Key),
		OriginalValue:     string(msg.Value),
		ErrorMessage:      cause.Error(),
		FailedAt:          failedAt.UTC().Format(time.RFC3339),
		RetryCount:        retryCount,
	}
}

func (m DLQMessage) headers() map[string]string {
	return map[string]string{
		HeaderRetryCount:    strconv.Itoa(m.RetryCount),
		HeaderOriginalTopic: m.OriginalTopic,
		HeaderErrorMessage:  m.ErrorMessage,
		HeaderFailedAt:      m.FailedAt,
	}
}

// ParseDLQMessage разбирает значение сообщения из топика DLQ.
func ParseDLQMessage(value []byte) (DLQMessage, error) {
	var m DLQMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return DLQMessage{}, fmt.Errorf("failed to unmarshal dlq message: %w", err)
	}
	return m, nil
}

// ReplayOptions описывает, какие записи DLQ и куда отправлять повторно.
type ReplayOptions struct {
	SourceTopic string
	// FallbackTopic используется, если в записи нет исходного топика.
	FallbackTopic string
	// Match оставляет только записи, в тексте ошибки которых есть эта подстрока.
	Match       string
	Limit       int
	FromNewest  bool
	IdleTimeout time.Duration
}

// ReplayStats — итог прохода по DLQ.
type ReplayStats struct {
	Scanned  int
	Replayed int
	Skipped  int
}

func (s *ReplayStats) add(other ReplayStats) {
	s.Scanned += other.Scanned
	s.Replayed += other.Replayed
	s.Skipped += other.Skipped
}

// OffsetReader — часть sarama.Client, нужная для определения границ партиций.
type OffsetReader interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partition int32, time int64) (int64, error)
}

// Replayer читает DLQ и возвращает исходные сообщения в их топики.
// Без producer работает в режиме dry-run: кандидаты только логируются.
type Replayer struct {
	offsets  OffsetReader
	consumer sarama.Consumer
	producer *Producer
	logger   *log.Entry
}

func NewReplayer(offsets OffsetReader, consumer sarama.Consumer, producer *Producer, logger *log.Entry) *Replayer {
	if logger == nil {
		logger = log.WithField("component", "dlq-replayer")
	}
	return &Replayer{offsets: offsets, consumer: consumer, producer: producer, logger: logger}
}

// Replay просматривает не больше opts.Limit записей по всем партициям в порядке их номеров.
// Партиция считается прочитанной, когда достигнут её конец на момент старта
// или за IdleTimeout не пришло ни одного сообщения.
func (r *Replayer) Replay(ctx context.Context, opts ReplayOptions) (ReplayStats, error) {
	if opts.Limit <= 0 || opts.IdleTimeout <= 0 {
		return ReplayStats{}, errors.New("replay limit and idle timeout must be positive")
	}

	partitions, err := r.offsets.Partitions(opts.SourceTopic)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("list partitions of %s: %w", opts.SourceTopic, err)
	}
	slices.Sort(partitions)

	var total ReplayStats
	for _, partition := range partitions {
		if total.Scanned >= opts.Limit {
			break
		}
		stats, err := r.replayPartition(ctx, opts, partition, opts.Limit-total.Scanned)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Replayer) replayPartition(ctx context.Context, opts ReplayOptions, partition int32, budget int) (ReplayStats, error) {
	var stats ReplayStats

	oldest, err := r.offsets.GetOffset(opts.SourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	end, err := r.offsets.GetOffset(opts.SourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}
	if end <= oldest {
		return stats, nil
	}
	start := oldest
	if opts.FromNewest {
		start = max(end-int64(budget), oldest)
	}

	pc, err := r.consumer.ConsumePartition(opts.SourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(opts.IdleTimeout)
	defer idle.Stop()
	errs := pc.Errors()

	for stats.Scanned < budget {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return stats, fmt.Errorf("partition %d: %w", partition, cerr)
		case msg, ok := <-pc.Messages():
			if !ok {
				return stats, nil
			}
			idle.Reset(opts.IdleTimeout)
			if msg.Offset >= end {
				return stats, nil
			}

			stats.Scanned++
			replayed, err := r.replayOne(msg, opts)
			if err != nil {
				return stats, err
			}
			if replayed {
				stats.Replayed++
			} else {
				stats.Skipped++
			}
		}
	}
	return stats, nil
}

// replayOne возвращает false для записей, которые пропускаются без ошибки.
func (r *Replayer) replayOne(msg *sarama.ConsumerMessage, opts ReplayOptions) (bool, error) {
	fields := log.Fields{"partition": msg.Partition, "offset": msg.Offset}

	entry, err := ParseDLQMessage(msg.Value)
	if err != nil {
		r.logger.WithError(err).WithFields(fields).Warn("skip unsupported dlq message")
		return false, nil
	}
	if entry.OriginalValue == "" || (opts.Match != "" && !strings.Contains(entry.ErrorMessage, opts.Match)) {
		return false, nil
	}

	record := entry.replayRecord(opts.FallbackTopic)
	fields["target_topic"] = record.Topic
	fields["retry_count"] = entry.RetryCount

	if r.producer == nil {
		r.logger.WithFields(fields).Info("dlq replay candidate")
		return true, nil
	}
	if err := r.producer.Send(record); err != nil {
		return false, fmt.Errorf("replay offset %d: %w", msg.Offset, err)
	}
	r.logger.WithFields(fields).Debug("dlq message replayed")
	return true, nil
}

// replayRecord восстанавливает исходное сообщение. Счётчик попыток переносится в заголовок,
// поэтому consumer продолжает отсчёт, а не начинает его заново.
func (m DLQMessage) replayRecord(fallbackTopic string) Record {
	topic := strings.TrimSpace(m.OriginalTopic)
	if topic == "" {
		topic = fallbackTopic
	}
	return Record{
		Topic:   topic,
		Key:     m.OriginalKey,
		Value:   []byte(m.OriginalValue),
		Headers: map[string]string{HeaderRetryCount: strconv.Itoa(m.RetryCount)},
	}
}
