//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketMinute/internal/domain/repository"
	internalrepo "MarketMinute/internal/repository"
	"MarketMinute/internal/service/fmp"
	"MarketMinute/pkg/config"
	"MarketMinute/pkg/metrics"
	"MarketMinute/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideLogCollector,
		ProvideRegistry,
		ProvideMetrics,
		wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),

		// Market session and limits
		ProvideMarketClock,
		ProvideTTLPolicy,
		ProvideRateLimiter,
		ProvidePresets,

		// Infrastructure
		ProvideCacheStore,
		ProvideClickHouseClient,
		ProvidePredictionStore,
		ProvideAccountStore,
		wire.Bind(new(repository.AccountStore), new(*internalrepo.GormAccountStore)),
		ProvideSnapshotProvider,
		wire.Bind(new(repository.SnapshotProvider), new(*fmp.Client)),
		ProvideSnapshotCache,

		// Use cases
		ProvideScorer,
		ProvideSnapshotsUseCase,
		ProvideSignalsUseCase,
		ProvideDashboardUseCase,
		ProvideSessionUseCase,
		ProvideCacheAdminUseCase,
		ProvidePredictionIngestHandler,

		// Transport
		ProvideGuard,
		ProvideMarketHandler,
		ProvideSignalsHandler,
		ProvideAdminHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
