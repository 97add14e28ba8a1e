package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/app"
	"github.com/vladislavdragonenkov/inventory/internal/version"
)

func main() {
	cfg, help, err := app.LoadConfig()
	if err != nil {
		if errors.Is(err, app.ErrHelpWanted) {
			fmt.Println(help)
			return
		}
		log.WithError(err).Fatal("не удалось прочитать конфигурацию")
	}
	if err := app.ConfigureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.WithError(err).Fatal("не удалось настроить логирование")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}
	log.Info("OrderService остановлен")
}

// run запускает сервис; штатная остановка по сигналу ошибкой не считается.
func run(ctx context.Context, cfg app.Config) error {
	build := version.Get()
	log.WithFields(log.Fields{
		"version":        build.Version,
		"commit":         build.Commit,
		"grpc_addr":      cfg.GRPCAddr,
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.ResolvedStorageDriver(),
		"batch_size":     cfg.BatchSize,
		"kafka":          len(cfg.Brokers()) > 0,
	}).Info("запускаем OrderService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
