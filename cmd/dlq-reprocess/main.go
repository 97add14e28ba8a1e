// Команда dlq-reprocess возвращает сообщения из Dead Letter Queue в исходные топики.
// По умолчанию работает в режиме dry-run и только печатает кандидатов.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/messaging/kafka"
)

type options struct {
	brokers []string
	execute bool
	replay  kafka.ReplayOptions
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	opts, err := parseOptions(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.WithError(err).Fatal("invalid options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := replay(ctx, opts)
	if err != nil {
		log.WithError(err).Fatal("dlq replay failed")
	}
	log.WithFields(log.Fields{
		"execute":  opts.execute,
		"scanned":  stats.Scanned,
		"replayed": stats.Replayed,
		"skipped":  stats.Skipped,
	}).Info("dlq replay finished")
}

func parseOptions(fs *flag.FlagSet, args []string, getenv func(string) string) (options, error) {
	var (
		opts    options
		brokers string
	)
	fs.StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (default $INV_KAFKA_BROKERS)")
	fs.BoolVar(&opts.execute, "execute", false, "publish messages; without it only candidates are logged")
	fs.StringVar(&opts.replay.SourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to read")
	fs.StringVar(&opts.replay.FallbackTopic, "target-topic", kafka.TopicOrderImport, "topic for entries without an original topic")
	fs.StringVar(&opts.replay.Match, "match", "", "replay only entries whose error contains this substring")
	fs.IntVar(&opts.replay.Limit, "limit", 100, "max DLQ entries to scan")
	fs.BoolVar(&opts.replay.FromNewest, "from-newest", false, "scan the last -limit entries of each partition")
	fs.DurationVar(&opts.replay.IdleTimeout, "idle-timeout", 2*time.Second, "stop reading a partition after this long without messages")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if strings.TrimSpace(brokers) == "" {
		brokers = getenv("INV_KAFKA_BROKERS")
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			opts.brokers = append(opts.brokers, b)
		}
	}

	var problems []string
	if len(opts.brokers) == 0 {
		problems = append(problems, "brokers are required (-brokers or INV_KAFKA_BROKERS)")
	}
	if strings.TrimSpace(opts.replay.SourceTopic) == "" || strings.TrimSpace(opts.replay.FallbackTopic) == "" {
		problems = append(problems, "source-topic and target-topic must not be empty")
	}
	if opts.replay.Limit <= 0 {
		problems = append(problems, "limit must be > 0")
	}
	if opts.replay.IdleTimeout <= 0 {
		problems = append(problems, "idle-timeout must be > 0")
	}
	if len(problems) > 0 {
		return options{}, errors.New(strings.Join(problems, "; "))
	}
	return opts, nil
}

func replay(ctx context.Context, opts options) (kafka.ReplayStats, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(opts.brokers, cfg)
	if err != nil {
		return kafka.ReplayStats{}, fmt.Errorf("create kafka client: %w", err)
	}
	defer func() { _ = client.Close() }()

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return kafka.ReplayStats{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	var producer *kafka.Producer
	if opts.execute {
		if producer, err = kafka.NewProducer(opts.brokers); err != nil {
			return kafka.ReplayStats{}, err
		}
		defer func() { _ = producer.Close() }()
	}

	return kafka.NewReplayer(client, consumer, producer, nil).Replay(ctx, opts.replay)
}
