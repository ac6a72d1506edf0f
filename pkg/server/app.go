package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketMinute/pkg/config"
	xhttp "MarketMinute/pkg/http"
	pkgkafka "MarketMinute/pkg/kafka"
	"MarketMinute/pkg/logger"
)

// App owns the long-running parts of the service: the HTTP server and the
// optional ingest consumer. Stores and sweepers are released by the DI cleanup.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
}

// New creates a new App. consumer may be nil when ingest is disabled.
func New(cfg *config.Config, log *logger.Logger, httpServer *xhttp.Server, consumer *pkgkafka.Consumer) *App {
	if log == nil {
		log = logger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		consumer:   consumer,
	}
}

// Run starts everything and blocks until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start", logger.Error(err))
		return err
	}

	a.log.Info("marketminute started",
		logger.String("env", a.cfg.Environment),
		logger.Int("port", a.cfg.Server.Port),
		logger.Bool("redis", a.cfg.Redis.Enabled),
		logger.Bool("clickhouse", a.cfg.ClickHouse.Enabled),
		logger.Bool("kafka", a.consumer != nil),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first: HTTP, then the consumer.
func (a *App) shutdown() error {
	timeout := a.httpServer.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown", logger.Error(err))
		firstErr = err
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop", logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}
