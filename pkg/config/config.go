package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level             string        `yaml:"level" default:"info"`
		Format            string        `yaml:"format" default:"json"`
		Output            string        `yaml:"output" default:"stdout"`
		AggregateInterval time.Duration `yaml:"aggregate_interval" default:"30s"`
		AggregateMaxKeys  int           `yaml:"aggregate_max_keys" default:"100"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
		SlowMs  int    `yaml:"slow_ms" default:"1000"`
	} `yaml:"metrics"`
	Market struct {
		Timezone        string        `yaml:"timezone" default:"America/New_York"`
		QuoteTTL        time.Duration `yaml:"quote_ttl" default:"60s"`
		ChartTTL        time.Duration `yaml:"chart_ttl" default:"300s"`
		SweepInterval   time.Duration `yaml:"sweep_interval" default:"60s"`
		MaxSymbols      int           `yaml:"max_symbols" default:"20"`
		UpstreamTimeout time.Duration `yaml:"upstream_timeout" default:"8s"`
	} `yaml:"market"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Addr      string        `yaml:"addr" default:"localhost:6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix" default:"marketminute"`
		OpTimeout time.Duration `yaml:"op_timeout" default:"250ms"`
	} `yaml:"redis"`
	RateLimit struct {
		SweepInterval time.Duration           `yaml:"sweep_interval" default:"5m"`
		Presets       map[string]PresetConfig `yaml:"presets"`
	} `yaml:"ratelimit"`
	FMP struct {
		BaseURL        string        `yaml:"base_url" default:"https://financialmodelingprep.com/api/v3"`
		APIKey         string        `yaml:"api_key"`
		Timeout        time.Duration `yaml:"timeout" default:"8s"`
		CallsPerMinute int           `yaml:"calls_per_minute" default:"300"`
	} `yaml:"fmp"`
	ClickHouse struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"marketminute"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		UseHTTP     bool          `yaml:"use_http"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled    bool          `yaml:"enabled"`
		Brokers    []string      `yaml:"brokers"`
		Topic      string        `yaml:"topic" default:"predictions"`
		DLQTopic   string        `yaml:"dlq_topic" default:"predictions.dlq"`
		GroupID    string        `yaml:"group_id" default:"marketminute-ingest"`
		Workers    int           `yaml:"workers" default:"4"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
	} `yaml:"kafka"`
	Accounts struct {
		DSN             string `yaml:"dsn" default:"file:accounts.db?cache=shared"`
		IdentityHeader  string `yaml:"identity_header" default:"X-User-Email"`
		FreeSignalLimit int    `yaml:"free_signal_limit" default:"3"`
	} `yaml:"accounts"`
	Admin struct {
		Token string `yaml:"token"`
	} `yaml:"admin"`
}

// PresetConfig overrides one named rate-limit preset.
type PresetConfig struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// Default returns a config with every default applied and nothing read from disk.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables and validates.
// An empty path skips the file and starts from defaults.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FMP_API_KEY"); v != "" {
		c.FMP.APIKey = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("ACCOUNTS_DSN"); v != "" {
		c.Accounts.DSN = v
	}
	if v := getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	if c.Market.QuoteTTL <= 0 || c.Market.ChartTTL <= 0 {
		return fmt.Errorf("market ttls must be positive")
	}
	if c.Market.MaxSymbols <= 0 {
		return fmt.Errorf("market.max_symbols must be positive")
	}
	if c.FMP.CallsPerMinute <= 0 {
		return fmt.Errorf("fmp.calls_per_minute must be positive")
	}
	for name, p := range c.RateLimit.Presets {
		if p.MaxRequests <= 0 || p.WindowSeconds <= 0 {
			return fmt.Errorf("ratelimit.presets.%s: max_requests and window_seconds must be positive", name)
		}
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("kafka ingest requires clickhouse.enabled")
		}
		if c.Kafka.DLQTopic == "" || c.Kafka.DLQTopic == c.Kafka.Topic {
			return fmt.Errorf("kafka.dlq_topic must be set and differ from kafka.topic")
		}
	}
	return nil
}
