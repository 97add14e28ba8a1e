package main

import (
	"context"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/inventory/internal/messaging/kafka"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := parseOptions(newFlagSet(), nil, env(map[string]string{"INV_KAFKA_BROKERS": "a:9092, b:9092,"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"a:9092", "b:9092"}, opts.brokers)
	assert.False(t, opts.execute)
	assert.Equal(t, kafka.ReplayOptions{
		SourceTopic:   kafka.TopicDeadLetterQueue,
		FallbackTopic: kafka.TopicOrderImport,
		Limit:         100,
		IdleTimeout:   2 * time.Second,
	}, opts.replay)
}

func TestParseOptions_FlagsOverrideEnv(t *testing.T) {
	args := []string{"-brokers=c:9092", "-execute", "-match=unavailable", "-limit=5", "-from-newest", "-idle-timeout=1s"}
	opts, err := parseOptions(newFlagSet(), args, env(map[string]string{"INV_KAFKA_BROKERS": "a:9092"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"c:9092"}, opts.brokers)
	assert.True(t, opts.execute)
	assert.Equal(t, "unavailable", opts.replay.Match)
	assert.Equal(t, 5, opts.replay.Limit)
	assert.True(t, opts.replay.FromNewest)
}

func TestParseOptions_Invalid(t *testing.T) {
	tests := map[string][]string{
		"no brokers":   nil,
		"zero limit":   {"-brokers=a:9092", "-limit=0"},
		"empty source": {"-brokers=a:9092", "-source-topic="},
		"zero idle":    {"-brokers=a:9092", "-idle-timeout=0s"},
		"unknown flag": {"-brokers=a:9092", "-nope"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseOptions(newFlagSet(), args, env(nil))
			require.Error(t, err)
		})
	}
}

func TestReplay_UnreachableBrokers(t *testing.T) {
	opts, err := parseOptions(newFlagSet(), []string{"-brokers=127.0.0.1:1"}, env(nil))
	require.NoError(t, err)

	_, err = replay(context.Background(), opts)
	require.ErrorContains(t, err, "create kafka client")
}
