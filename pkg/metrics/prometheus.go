package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domrepo "MarketMinute/internal/domain/repository"
)

const namespace = "marketminute"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheLookups    *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	upstreamSymbols *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	rateLimit       *prometheus.CounterVec
	signalsScored   *prometheus.CounterVec
	ingested        prometheus.Counter
	ingestErrors    prometheus.Counter
	consumerLatency *prometheus.HistogramVec
}

var _ domrepo.Metrics = (*Recorder)(nil)

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Snapshot cache lookups by result",
			},
			[]string{"result"},
		),
		upstreamLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_fetch_duration_seconds",
				Help:      "Duration of batched upstream fetches",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		upstreamSymbols: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_symbols_total",
				Help:      "Symbols requested from upstream providers",
			},
			[]string{"provider"},
		),
		upstreamErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Failed upstream fetches",
			},
			[]string{"provider"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_fallbacks_total",
				Help:      "Operations served by the in-process backend after the shared backend failed",
			},
			[]string{"op"},
		),
		rateLimit: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Rate limit decisions by operation and outcome",
			},
			[]string{"operation", "allowed"},
		),
		signalsScored: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_scored_total",
				Help:      "Scored signals by regime",
			},
			[]string{"regime", "tradeable"},
		),
		ingested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_ingested_total",
			Help:      "Prediction records stored from the ingest topic",
		}),
		ingestErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_ingest_errors_total",
			Help:      "Ingest messages that failed to decode or store",
		}),
		consumerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "kafka_consumer_handle_seconds",
				Help:      "Handling time per Kafka message",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"topic", "ok"},
		),
	}
}

func (r *Recorder) RecordCacheLookup(hits, misses int) {
	r.cacheLookups.WithLabelValues("hit").Add(float64(hits))
	r.cacheLookups.WithLabelValues("miss").Add(float64(misses))
}

func (r *Recorder) RecordUpstreamFetch(provider string, symbols int, seconds float64, err error) {
	r.upstreamLatency.WithLabelValues(provider).Observe(seconds)
	r.upstreamSymbols.WithLabelValues(provider).Add(float64(symbols))
	if err != nil {
		r.upstreamErrors.WithLabelValues(provider).Inc()
	}
}

func (r *Recorder) RecordFallback(op string) {
	r.fallbacks.WithLabelValues(op).Inc()
}

func (r *Recorder) RecordRateLimit(operation string, allowed bool) {
	r.rateLimit.WithLabelValues(operation, strconv.FormatBool(allowed)).Inc()
}

func (r *Recorder) RecordSignalScored(regime string, tradeable bool) {
	r.signalsScored.WithLabelValues(regime, strconv.FormatBool(tradeable)).Inc()
}

func (r *Recorder) RecordIngest(records int, err error) {
	if err != nil {
		r.ingestErrors.Inc()
		return
	}
	r.ingested.Add(float64(records))
}

// ObserveConsumer matches the kafka consumer observer signature.
func (r *Recorder) ObserveConsumer(topic string, seconds float64, err error) {
	r.consumerLatency.WithLabelValues(topic, strconv.FormatBool(err == nil)).Observe(seconds)
}
