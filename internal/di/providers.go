package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"MarketMinute/internal/domain/repository"
	domsvc "MarketMinute/internal/domain/service"
	"MarketMinute/internal/handler/api"
	internalrepo "MarketMinute/internal/repository"
	svccache "MarketMinute/internal/service/cache"
	"MarketMinute/internal/service/fmp"
	"MarketMinute/internal/service/marketclock"
	"MarketMinute/internal/service/ratelimit"
	"MarketMinute/internal/services/analytics"
	"MarketMinute/internal/usecase"
	pkgcache "MarketMinute/pkg/cache"
	pkgch "MarketMinute/pkg/clickhouse"
	"MarketMinute/pkg/config"
	xhttp "MarketMinute/pkg/http"
	pkgkafka "MarketMinute/pkg/kafka"
	"MarketMinute/pkg/logger"
	"MarketMinute/pkg/metrics"
	"MarketMinute/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideLogCollector dedups warnings and errors that repeat on every request
// while a backend is down. Per-request symbols are left out of the dedup key.
func ProvideLogCollector(cfg *config.Config, l *logger.Logger) (*logger.LogCollector, func()) {
	c := logger.NewLogCollector(l, logger.CollectionConfig{
		Interval:     cfg.Log.AggregateInterval,
		MaxKeys:      cfg.Log.AggregateMaxKeys,
		IgnoreFields: []string{"symbols", "ctx_done"},
	})
	return c, c.Close
}

// ProvideRegistry creates a private registry with Go and process collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

func ProvideMarketClock(cfg *config.Config) (*marketclock.Clock, error) {
	return marketclock.New(cfg.Market.Timezone)
}

func ProvideTTLPolicy(clock *marketclock.Clock) *marketclock.Policy {
	return marketclock.NewPolicy(clock)
}

// ProvideCacheStore returns the in-process store, or Redis with the in-process
// store as its fallback when redis.enabled is set and reachable.
func ProvideCacheStore(cfg *config.Config, l *logger.Logger, agg *logger.LogCollector, m repository.Metrics) (pkgcache.AdminStore, func(), error) {
	mem := pkgcache.NewMemoryStore(
		pkgcache.WithMemoryCleanup(cfg.Market.SweepInterval),
		pkgcache.WithMemoryLogger(l),
	)
	if !cfg.Redis.Enabled {
		return mem, func() { _ = mem.Close() }, nil
	}

	rs, err := pkgcache.NewRedisStore(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisOpTimeout(cfg.Redis.OpTimeout),
	)
	if err != nil {
		// Redis down at boot: memory only.
		l.Warn("redis unavailable, using memory cache", logger.String("addr", cfg.Redis.Addr), logger.Error(err))
		m.RecordFallback("connect")
		return mem, func() { _ = mem.Close() }, nil
	}

	store := pkgcache.NewFallbackStore(rs, mem,
		pkgcache.WithFallbackLogger(l),
		pkgcache.WithFallbackCollector(agg),
		pkgcache.WithFallbackHook(m.RecordFallback),
	)
	cleanup := func() {
		if err := rs.Close(); err != nil {
			l.Warn("redis close", logger.Error(err))
		}
		_ = mem.Close()
	}
	return store, cleanup, nil
}

// ProvideRateLimiter creates the limiter shared by HTTP routes and the upstream budget.
func ProvideRateLimiter(cfg *config.Config, l *logger.Logger, m repository.Metrics) (*ratelimit.Limiter, func()) {
	lim := ratelimit.New(
		ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval),
		ratelimit.WithLogger(l),
		ratelimit.WithObserver(m.RecordRateLimit),
	)
	return lim, lim.Close
}

func ProvidePresets(cfg *config.Config) *ratelimit.Presets {
	overrides := make(map[string]ratelimit.Limit, len(cfg.RateLimit.Presets))
	for name, p := range cfg.RateLimit.Presets {
		overrides[name] = ratelimit.Limit{MaxRequests: p.MaxRequests, WindowSeconds: p.WindowSeconds}
	}
	return ratelimit.NewPresets(overrides)
}

// ProvideSnapshotProvider creates the FMP quote client.
func ProvideSnapshotProvider(cfg *config.Config, budget *ratelimit.Limiter, l *logger.Logger) *fmp.Client {
	return fmp.New(fmp.Config{
		BaseURL:        cfg.FMP.BaseURL,
		APIKey:         cfg.FMP.APIKey,
		Timeout:        cfg.FMP.Timeout,
		CallsPerMinute: cfg.FMP.CallsPerMinute,
	}, budget, l)
}

func ProvideSnapshotCache(cfg *config.Config, store pkgcache.AdminStore, provider repository.SnapshotProvider, policy *marketclock.Policy, l *logger.Logger, agg *logger.LogCollector, m repository.Metrics) *svccache.SnapshotCache {
	return svccache.NewSnapshotCache(store, provider, policy,
		svccache.WithDefaultTTL(cfg.Market.QuoteTTL),
		svccache.WithDataClass(marketclock.Quote),
		svccache.WithLogger(l),
		svccache.WithLogCollector(agg),
		svccache.WithMetrics(m),
	)
}

// ProvideClickHouseClient connects when clickhouse.enabled is set and returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePredictionStore uses ClickHouse when connected, else an in-process store.
func ProvidePredictionStore(client *pkgch.Client) (repository.PredictionStore, error) {
	if client == nil {
		return internalrepo.NewMemoryPredictionStore(), nil
	}
	store := internalrepo.NewCHPredictionStore(client.DB(), client.Database())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvideAccountStore(cfg *config.Config) (*internalrepo.GormAccountStore, func(), error) {
	store, err := internalrepo.OpenAccountStore(cfg.Accounts.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func ProvideScorer() domsvc.SignalScorer {
	return analytics.NewQuantScorer()
}

func ProvideSnapshotsUseCase(cfg *config.Config, cache *svccache.SnapshotCache) *usecase.SnapshotsUseCase {
	return usecase.NewSnapshotsUseCase(cache, cfg.Market.MaxSymbols)
}

func ProvideSignalsUseCase(cfg *config.Config, source repository.PredictionStore, scorer domsvc.SignalScorer, m repository.Metrics, l *logger.Logger) *usecase.SignalsUseCase {
	return usecase.NewSignalsUseCase(source, scorer, m, cfg.Accounts.FreeSignalLimit, l)
}

func ProvideDashboardUseCase(cfg *config.Config, snapshots *usecase.SnapshotsUseCase, signals *usecase.SignalsUseCase, l *logger.Logger) *usecase.DashboardUseCase {
	return usecase.NewDashboardUseCase(snapshots, signals, cfg.Market.UpstreamTimeout+2*time.Second, l)
}

func ProvideSessionUseCase(cfg *config.Config, policy *marketclock.Policy) *usecase.SessionUseCase {
	return usecase.NewSessionUseCase(policy, map[marketclock.DataClass]time.Duration{
		marketclock.Quote:       cfg.Market.QuoteTTL,
		marketclock.Chart:       cfg.Market.ChartTTL,
		marketclock.Summary:     marketclock.MinTTL(marketclock.Summary),
		marketclock.Explanation: marketclock.MinTTL(marketclock.Explanation),
	}, nil)
}

func ProvideCacheAdminUseCase(cache *svccache.SnapshotCache, limiter *ratelimit.Limiter) *usecase.CacheAdminUseCase {
	return usecase.NewCacheAdminUseCase(cache, limiter)
}

func ProvideGuard(cfg *config.Config, limiter *ratelimit.Limiter, presets *ratelimit.Presets, accounts repository.AccountStore, l *logger.Logger) *api.Guard {
	return api.NewGuard(limiter, presets, accounts, cfg.Accounts.IdentityHeader, l)
}

func ProvideMarketHandler(l *logger.Logger, guard *api.Guard, snapshots *usecase.SnapshotsUseCase, dashboard *usecase.DashboardUseCase, session *usecase.SessionUseCase) *api.MarketHandler {
	return api.NewMarketHandler(l, guard, snapshots, dashboard, session)
}

func ProvideSignalsHandler(cfg *config.Config, l *logger.Logger, guard *api.Guard, signals *usecase.SignalsUseCase) *api.SignalsHandler {
	return api.NewSignalsHandler(l, guard, signals, cfg.Market.MaxSymbols)
}

func ProvideAdminHandler(cfg *config.Config, l *logger.Logger, guard *api.Guard, admin *usecase.CacheAdminUseCase) *api.AdminHandler {
	return api.NewAdminHandler(l, guard, admin, cfg.Admin.Token)
}

// ProvideHTTPServer registers every handler on one Echo server.
func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, reg *prometheus.Registry, market *api.MarketHandler, signals *api.SignalsHandler, admin *api.AdminHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(time.Duration(cfg.Metrics.SlowMs) * time.Millisecond),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	} else {
		opts = append(opts, xhttp.WithMetrics("", nil, nil))
	}
	return xhttp.NewServer([]xhttp.Handler{market, signals, admin}, opts...)
}

func ProvidePredictionIngestHandler(cfg *config.Config, store repository.PredictionStore, m repository.Metrics, l *logger.Logger) *usecase.PredictionIngestHandler {
	return usecase.NewPredictionIngestHandler(cfg.Kafka.Topic, store, m, l)
}

// ProvideKafkaConsumer returns nil when kafka.enabled is off.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger, rec *metrics.Recorder, handler *usecase.PredictionIngestHandler) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, cfg.Kafka.BackoffMin, cfg.Kafka.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerObserver(rec.ObserveConsumer),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(handler)
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *logger.Logger, httpServer *xhttp.Server, consumer *pkgkafka.Consumer) *server.App {
	return server.New(cfg, l, httpServer, consumer)
}
