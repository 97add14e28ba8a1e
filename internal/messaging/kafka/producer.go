package kafka

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Record — одно исходящее сообщение.
type Record struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (r Record) toSarama(now time.Time) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic:     r.Topic,
		Key:       sarama.StringEncoder(r.Key),
		Value:     sarama.ByteEncoder(r.Value),
		Timestamp: now,
	}
	for _, name := range slices.Sorted(maps.Keys(r.Headers)) {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(r.Headers[name])})
	}
	return msg
}

// Producer отправляет сообщения синхронно: Send возвращается после подтверждения брокером.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducer подключается к брокерам с настройками NewProducerConfig.
func NewProducer(brokers []string) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newProducer(sp), nil
}

func newProducer(sp sarama.SyncProducer) *Producer {
	return &Producer{sync: sp, logger: log.WithField("component", "kafka-producer")}
}

// NewProducerConfig возвращает настройки идемпотентного producer с подтверждением от всех реплик.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	// идемпотентный producer требует одного запроса в полёте
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func (p *Producer) Send(r Record) error {
	partition, offset, err := p.sync.SendMessage(r.toSarama(time.Now()))
	fields := log.Fields{"topic": r.Topic, "key": r.Key}
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("failed to send message to kafka")
		return fmt.Errorf("send to %s: %w", r.Topic, err)
	}
	fields["partition"] = partition
	fields["offset"] = offset
	p.logger.WithFields(fields).Debug("message sent to kafka")
	return nil
}

// SendJSON кодирует v в JSON и отправляет как значение сообщения.
func (p *Producer) SendJSON(topic, key string, v any, headers map[string]string) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", topic, err)
	}
	return p.Send(Record{Topic: topic, Key: key, Value: value, Headers: headers})
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
