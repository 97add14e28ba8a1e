package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthcheck "github.com/vladislavdragonenkov/inventory/internal/health"
	"github.com/vladislavdragonenkov/inventory/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/inventory/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/inventory/internal/service/grpc"
	"github.com/vladislavdragonenkov/inventory/internal/service/httpapi"
	"github.com/vladislavdragonenkov/inventory/internal/service/orders"
	"github.com/vladislavdragonenkov/inventory/internal/version"
)

const grpcStopTimeout = 5 * time.Second

// Run поднимает gRPC, REST и сервер метрик и блокируется до отмены ctx или ошибки одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	orderMetrics := metrics.NewOrderMetrics()
	opts := []orders.Option{
		orders.WithBatchSize(cfg.BatchSize),
		orders.WithMetrics(orderMetrics),
		orders.WithLogger(logger.WithField("layer", "orders")),
	}

	var kafkaRT kafkaRuntime
	if producer, err := initKafkaProducer(cfg.Brokers(), logger); err == nil && producer != nil {
		kafkaRT.producer = producer
		opts = append(opts, orders.WithPublisher(kafka.NewEventPublisher(producer, cfg.KafkaEventsTopic)))
	}
	defer closeKafka(kafkaRT, logger)

	orderService := orders.NewService(deps.store, opts...)

	if kafkaRT.producer != nil && cfg.KafkaImportTopic != "" {
		consumer, err := startImportConsumer(ctx, cfg, kafkaRT.producer, orderService, orderMetrics, logger)
		if err != nil {
			logger.WithError(err).Warn("order import consumer disabled")
		} else {
			// consumer останавливается раньше producer: через него пишется DLQ
			defer func() {
				closeKafka(kafkaRuntime{consumer: consumer}, logger)
			}()
		}
	}

	grpcMetrics := metrics.NewGRPCServerMetrics()
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	grpcsvc.RegisterOrderServiceServer(grpcServer, grpcsvc.NewOrderService(orderService, logger.WithField("layer", "grpc")))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthHandler := healthcheck.NewHandler(version.Get().Version)
	healthHandler.Register("storage", deps.storageCheck)

	restServer := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(
		httpapi.NewHandler(orderService, logger.WithField("layer", "http")),
	))
	metricsServer := newMetricsServer(cfg.MetricsAddr, healthHandler)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("REST API слушает %s", cfg.HTTPAddr)
		return serveHTTP(restServer)
	})
	g.Go(func() error {
		logger.Infof("метрики доступны по адресу %s/metrics", cfg.MetricsAddr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", cfg.MetricsAddr, cfg.MetricsAddr, cfg.MetricsAddr)
		return serveHTTP(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(restServer, cfg.ShutdownTimeout, logger)
		shutdownHTTP(metricsServer, cfg.ShutdownTimeout, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// newMetricsServer собирает служебный HTTP-сервер: метрики Prometheus и health-пробы.
func newMetricsServer(addr string, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.Live)
	mux.HandleFunc("/readyz", healthHandler.Ready)

	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func serveHTTP(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server %s: %w", srv.Addr, err)
	}
	return nil
}

// stopGRPC ждёт завершения активных RPC, но не дольше grpcStopTimeout.
func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(grpcStopTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).WithField("addr", srv.Addr).Warn("http shutdown with error")
	}
}
