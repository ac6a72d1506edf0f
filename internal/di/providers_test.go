package di

import (
	"testing"

	internalrepo "MarketMinute/internal/repository"
	"MarketMinute/internal/service/ratelimit"
	"MarketMinute/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Accounts.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	return cfg
}

func TestProvidePresetsAppliesOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Presets = map[string]config.PresetConfig{
		ratelimit.DataFetch: {MaxRequests: 5, WindowSeconds: 10},
	}
	p := ProvidePresets(cfg)

	got, err := p.Get(ratelimit.DataFetch)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MaxRequests != 5 || got.WindowSeconds != 10 {
		t.Fatalf("override = %+v", got)
	}
	if gen, _ := p.Get(ratelimit.General); gen.MaxRequests != 60 {
		t.Fatalf("untouched preset changed: %+v", gen)
	}
}

func TestProvidePredictionStoreWithoutClickHouse(t *testing.T) {
	store, err := ProvidePredictionStore(nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, ok := store.(*internalrepo.MemoryPredictionStore); !ok {
		t.Fatalf("store = %T, want memory store", store)
	}
}

func TestProvideKafkaConsumerDisabled(t *testing.T) {
	c, err := ProvideKafkaConsumer(testConfig(t), nil, nil, nil)
	if err != nil || c != nil {
		t.Fatalf("consumer = %v, err = %v; want nil, nil", c, err)
	}
}

func TestInitializeAppWithDefaults(t *testing.T) {
	app, cleanup, err := InitializeApp(testConfig(t))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer cleanup()
	if app == nil {
		t.Fatalf("nil app")
	}
}
