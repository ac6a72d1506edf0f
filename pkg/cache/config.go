package cache

import (
	"time"

	"MarketMinute/pkg/logger"
)

// RedisOption configures Redis store.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
	OpTimeout    time.Duration
}

// WithRedisAddr sets Redis host:port.
func WithRedisAddr(addr string) RedisOption {
	return func(c *RedisConfig) {
		c.Addr = addr
	}
}

// WithRedisPassword sets Redis password.
func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
	}
}

// WithRedisDB sets Redis database number.
func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) {
		c.DB = db
	}
}

// WithRedisPool sets connection pool settings.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// WithRedisPrefix sets key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.Prefix = prefix
	}
}

// WithRedisOpTimeout bounds every single command.
func WithRedisOpTimeout(d time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.OpTimeout = d
	}
}

// MemoryOption configures Memory store.
type MemoryOption func(*MemoryConfig)

// MemoryConfig holds memory store configuration.
type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
	Clock           func() time.Time
	Logger          *logger.Logger
}

// WithMemoryMaxSize sets max entry count.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		c.MaxSize = size
	}
}

// WithMemoryCleanup sets sweep interval. Zero disables the background sweep.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) {
		c.CleanupInterval = interval
	}
}

// WithMemoryClock overrides time.Now.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(c *MemoryConfig) {
		c.Clock = now
	}
}

// WithMemoryLogger sets the sweep logger.
func WithMemoryLogger(l *logger.Logger) MemoryOption {
	return func(c *MemoryConfig) {
		c.Logger = l
	}
}

// FallbackOption configures Fallback store.
type FallbackOption func(*FallbackStore)

// WithFallbackLogger logs every degraded operation at warn level.
func WithFallbackLogger(l *logger.Logger) FallbackOption {
	return func(f *FallbackStore) {
		f.l = l
	}
}

// WithFallbackCollector logs the first degraded operation of each kind and
// summarises repeats on the collector's interval. It takes precedence over WithFallbackLogger.
func WithFallbackCollector(c *logger.LogCollector) FallbackOption {
	return func(f *FallbackStore) {
		f.agg = c
	}
}

// WithFallbackHook is called with the operation name whenever the primary fails.
func WithFallbackHook(hook func(op string)) FallbackOption {
	return func(f *FallbackStore) {
		f.onFallback = hook
	}
}
