package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MarketMinute/internal/domain/models"
	domrepo "MarketMinute/internal/domain/repository"
	xhttp "MarketMinute/pkg/http"
	pkgkafka "MarketMinute/pkg/kafka"
	"MarketMinute/pkg/logger"
	"MarketMinute/pkg/util"
)

// PredictionIngestHandler consumes model output from Kafka and stores it.
type PredictionIngestHandler struct {
	topic   string
	store   domrepo.PredictionStore
	metrics domrepo.Metrics
	now     func() time.Time
	l       *logger.Logger
}

var _ pkgkafka.MessageHandler = (*PredictionIngestHandler)(nil)

func NewPredictionIngestHandler(topic string, store domrepo.PredictionStore, metrics domrepo.Metrics, l *logger.Logger) *PredictionIngestHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &PredictionIngestHandler{
		topic:   topic,
		store:   store,
		metrics: metrics,
		now:     time.Now,
		l:       l,
	}
}

func (h *PredictionIngestHandler) Topic() string { return h.topic }

// predictionMessage accepts RFC3339 strings or unix seconds/millis for timestamp.
type predictionMessage struct {
	models.Prediction
	Timestamp json.RawMessage `json:"timestamp"`
}

// Handle stores every valid record in the message. Invalid records are
// dropped and logged; a message with none left is an error.
func (h *PredictionIngestHandler) Handle(ctx context.Context, b []byte) error {
	preds, skipped, fields, err := h.decode(b)
	if err != nil {
		h.metrics.RecordIngest(0, err)
		return err
	}
	if skipped > 0 && h.l != nil {
		h.l.Warn("prediction records skipped",
			logger.Int("skipped", skipped),
			logger.Int("kept", len(preds)),
			logger.Strings("fields", fields))
	}
	if len(preds) == 0 {
		err := fmt.Errorf("no valid predictions in message")
		h.metrics.RecordIngest(0, err)
		return err
	}

	err = h.store.StoreBatch(ctx, preds)
	h.metrics.RecordIngest(len(preds), err)
	if err != nil {
		return fmt.Errorf("store predictions: %w", err)
	}
	return nil
}

// decode also reports the JSON names of the fields that failed validation.
func (h *PredictionIngestHandler) decode(b []byte) (preds []models.Prediction, skipped int, fields []string, err error) {
	b = bytes.TrimSpace(b)
	var raw []predictionMessage
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, 0, nil, fmt.Errorf("decode predictions: %w", err)
		}
	} else {
		var one predictionMessage
		if err := json.Unmarshal(b, &one); err != nil {
			return nil, 0, nil, fmt.Errorf("decode prediction: %w", err)
		}
		raw = []predictionMessage{one}
	}

	preds = make([]models.Prediction, 0, len(raw))
	seen := make(map[string]struct{})
	for _, m := range raw {
		p := m.Prediction
		p.Ticker = strings.ToUpper(strings.TrimSpace(p.Ticker))
		p.Signal = models.Signal(strings.ToUpper(string(p.Signal)))
		p.Timestamp = h.parseTimestamp(m.Timestamp)
		if verrs := xhttp.ValidateStruct(p); verrs != nil {
			skipped++
			list, _ := verrs.([]xhttp.ValidationError)
			for _, e := range list {
				if _, dup := seen[e.Field]; !dup {
					seen[e.Field] = struct{}{}
					fields = append(fields, e.Field)
				}
			}
			continue
		}
		preds = append(preds, p)
	}
	return preds, skipped, fields, nil
}

func (h *PredictionIngestHandler) parseTimestamp(raw json.RawMessage) time.Time {
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return h.now()
	}
	return util.ParseTimeDefault(s, h.now())
}
