package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
)

// Драйверы хранилища заказов.
const (
	StorageDriverAuto     = "auto"
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения; значения читаются из переменных окружения INV_*.
type Config struct {
	GRPCAddr    string `conf:"default::50051,env:INV_GRPC_ADDR"`
	HTTPAddr    string `conf:"default::8080,env:INV_HTTP_ADDR"`
	MetricsAddr string `conf:"default::9090,env:INV_METRICS_ADDR"`

	// StorageDriver=auto выбирает postgres при заданном DSN и memory иначе.
	StorageDriver       string `conf:"default:auto,enum:auto|memory|postgres,env:INV_STORAGE_DRIVER"`
	PostgresDSN         string `conf:"env:INV_POSTGRES_DSN,noprint"`
	PostgresAutoMigrate bool   `conf:"default:true,env:INV_AUTO_MIGRATE"`

	BatchSize int `conf:"default:1000,env:INV_BATCH_SIZE"`

	KafkaBrokers     string `conf:"env:INV_KAFKA_BROKERS"`
	KafkaEventsTopic string `conf:"default:inv.order.events,env:INV_KAFKA_EVENTS_TOPIC"`
	KafkaImportTopic string `conf:"default:inv.order.import,env:INV_KAFKA_IMPORT_TOPIC"`
	KafkaGroupID     string `conf:"default:inventory-importer,env:INV_KAFKA_GROUP_ID"`
	KafkaMaxRetries  int    `conf:"default:3,env:INV_KAFKA_MAX_RETRIES"`

	LogLevel  string `conf:"default:info,env:INV_LOG_LEVEL"`
	LogFormat string `conf:"default:text,enum:text|json,env:INV_LOG_FORMAT"`

	ShutdownTimeout time.Duration `conf:"default:10s,env:INV_SHUTDOWN_TIMEOUT"`
}

// DefaultConfig возвращает настройки по умолчанию без чтения окружения.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverAuto,
		PostgresAutoMigrate: true,
		BatchSize:           1000,
		KafkaEventsTopic:    "inv.order.events",
		KafkaImportTopic:    "inv.order.import",
		KafkaGroupID:        "inventory-importer",
		KafkaMaxRetries:     3,
		LogLevel:            "info",
		LogFormat:           "text",
		ShutdownTimeout:     10 * time.Second,
	}
}

// ErrHelpWanted возвращается из LoadConfig, если запрошена справка (--help).
var ErrHelpWanted = conf.ErrHelpWanted

// LoadConfig читает .env (если есть) и переменные окружения.
// При запросе справки возвращает текст справки и ErrHelpWanted.
func LoadConfig() (Config, string, error) {
	_ = godotenv.Load()

	var cfg Config
	help, err := conf.Parse("", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return Config{}, help, err
		}
		return Config{}, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, "", nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []string
	if c.BatchSize <= 0 {
		errs = append(errs, "INV_BATCH_SIZE must be > 0")
	}
	if c.StorageDriver == StorageDriverPostgres && strings.TrimSpace(c.PostgresDSN) == "" {
		errs = append(errs, "INV_POSTGRES_DSN is required for postgres storage")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "INV_SHUTDOWN_TIMEOUT must be > 0")
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
}

// ResolvedStorageDriver возвращает фактический драйвер с учётом режима auto.
func (c Config) ResolvedStorageDriver() string {
	if c.StorageDriver == "" || c.StorageDriver == StorageDriverAuto {
		if strings.TrimSpace(c.PostgresDSN) != "" {
			return StorageDriverPostgres
		}
		return StorageDriverMemory
	}
	return c.StorageDriver
}

// Brokers возвращает список Kafka-брокеров; пустой список отключает Kafka.
func (c Config) Brokers() []string {
	chunks := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
