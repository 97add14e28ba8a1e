package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/health"
	"github.com/vladislavdragonenkov/inventory/internal/storage/memory"
	"github.com/vladislavdragonenkov/inventory/internal/storage/postgres"
)

// runtimeDependencies содержит хранилище и всё, что нужно для его проверки и закрытия.
type runtimeDependencies struct {
	store          domain.OrderStore
	storageCheck health.CheckFunc
	closeFn        func() error
}

// initRuntimeDependencies выбирает хранилище заказов по конфигурации.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	driver := cfg.ResolvedStorageDriver()
	switch driver {
	case StorageDriverMemory:
		logger.Info("using in-memory order storage")
		return runtimeDependencies{
			store:        memory.NewOrderStore(),
			storageCheck: func(context.Context) error { return nil },
			closeFn:      func() error { return nil },
		}, nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return runtimeDependencies{}, fmt.Errorf("postgres dsn is required for storage driver %q", StorageDriverPostgres)
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return runtimeDependencies{}, err
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return runtimeDependencies{}, err
		}
		logger.Info("postgres schema is up to date")
	}

	logger.Info("using postgres order storage")
	return runtimeDependencies{
		store:        postgres.NewOrderStore(store),
		storageCheck: store.Ping,
		closeFn:      store.Close,
	}, nil
}
