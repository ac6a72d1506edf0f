package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/domain/repository"
	"MarketMinute/pkg/clickhouse"
)

const predictionColumns = "ts, ticker, current_price, signal, confidence, prob_up, prob_neutral, prob_down, should_trade, take_profit, stop_loss, atr, news_count, model_quality"

// CHPredictionStore keeps model output in a ReplacingMergeTree keyed by (ticker, ts).
type CHPredictionStore struct {
	db       *sql.DB
	database string
	table    string
}

var _ repository.PredictionStore = (*CHPredictionStore)(nil)

func NewCHPredictionStore(db *sql.DB, database string) *CHPredictionStore {
	return &CHPredictionStore{db: db, database: database, table: database + ".predictions"}
}

// Schema returns the DDL for the predictions table.
func (s *CHPredictionStore) Schema() []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts            DateTime64(3, 'UTC'),
	ticker        LowCardinality(String),
	current_price Float64,
	signal        LowCardinality(String),
	confidence    Float64,
	prob_up       Float64,
	prob_neutral  Float64,
	prob_down     Float64,
	should_trade  UInt8,
	take_profit   Nullable(Float64),
	stop_loss     Nullable(Float64),
	atr           Nullable(Float64),
	news_count    Nullable(Int32),
	model_quality String,
	inserted_at   DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(inserted_at)
ORDER BY (ticker, ts)`, s.table),
	}
}

func (s *CHPredictionStore) Init(ctx context.Context) error {
	return clickhouse.InitSchema(ctx, s.db, s.Schema())
}

// StoreBatch inserts predictions in multi-row chunks.
func (s *CHPredictionStore) StoreBatch(ctx context.Context, preds []models.Prediction) error {
	const chunkSize = 1000
	for start := 0; start < len(preds); start += chunkSize {
		end := start + chunkSize
		if end > len(preds) {
			end = len(preds)
		}
		q, args := s.insertQuery(preds[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert predictions: %w", err)
		}
	}
	return nil
}

func (s *CHPredictionStore) insertQuery(preds []models.Prediction) (string, []interface{}) {
	values := make([]string, 0, len(preds))
	args := make([]interface{}, 0, len(preds)*14)
	for _, p := range preds {
		if p.Ticker == "" {
			continue
		}
		ts := p.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		var trade uint8
		if p.ShouldTrade {
			trade = 1
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			ts.UTC(), p.Ticker, p.CurrentPrice, string(p.Signal), p.Confidence,
			p.ProbUp, p.ProbNeutral, p.ProbDown, trade,
			p.TakeProfit, p.StopLoss, p.ATR, nullableInt32(p.NewsCount), p.ModelQuality,
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, predictionColumns, strings.Join(values, ",")), args
}

// Latest returns the newest prediction per ticker.
func (s *CHPredictionStore) Latest(ctx context.Context, tickers []string) ([]models.Prediction, error) {
	q, args := s.latestQuery(tickers)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest predictions: %w", err)
	}
	defer rows.Close()

	var out []models.Prediction
	for rows.Next() {
		var (
			p         models.Prediction
			signal    string
			trade     uint8
			tp, sl    sql.NullFloat64
			atr       sql.NullFloat64
			newsCount sql.NullInt32
		)
		if err := rows.Scan(&p.Timestamp, &p.Ticker, &p.CurrentPrice, &signal, &p.Confidence,
			&p.ProbUp, &p.ProbNeutral, &p.ProbDown, &trade, &tp, &sl, &atr, &newsCount, &p.ModelQuality); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		p.Signal = models.Signal(signal)
		p.ShouldTrade = trade == 1
		p.TakeProfit = floatPtr(tp)
		p.StopLoss = floatPtr(sl)
		p.ATR = floatPtr(atr)
		if newsCount.Valid {
			n := int(newsCount.Int32)
			p.NewsCount = &n
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CHPredictionStore) latestQuery(tickers []string) (string, []interface{}) {
	var where string
	var args []interface{}
	if len(tickers) > 0 {
		where = " WHERE ticker IN (" + strings.TrimSuffix(strings.Repeat("?,", len(tickers)), ",") + ")"
		args = make([]interface{}, len(tickers))
		for i, t := range tickers {
			args[i] = t
		}
	}
	q := fmt.Sprintf("SELECT %s FROM %s FINAL%s ORDER BY ticker ASC, ts DESC LIMIT 1 BY ticker", predictionColumns, s.table, where)
	return q, args
}

func (s *CHPredictionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHPredictionStore) Close() error {
	return nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullableInt32(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int32(*v)
}
