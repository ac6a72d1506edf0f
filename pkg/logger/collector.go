package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Publisher receives aggregated entries on every flush.
type Publisher interface {
	Publish(ctx context.Context, entries []AggregatedLogEntry) error
}

type CollectionConfig struct {
	Interval     time.Duration // flush interval
	MaxKeys      int           // distinct entries held before an early flush
	IgnoreFields []string      // fields left out of the dedup key, e.g. per-request symbols
	Publisher    Publisher     // defaults to a summary line on the wrapped logger
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector passes the first occurrence of a warning or error straight to
// the logger and counts identical repeats until the next flush. A cache backend
// that is down for a minute yields one line plus one summary, not one per request.
type LogCollector struct {
	l      *Logger
	config CollectionConfig
	ignore map[string]struct{}
	logMap map[string]*AggregatedLogEntry
	now    func() time.Time
	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLogCollector(l *Logger, config CollectionConfig) *LogCollector {
	if l == nil {
		l = Nop()
	}
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.MaxKeys <= 0 {
		config.MaxKeys = 100
	}
	if config.Publisher == nil {
		config.Publisher = summaryPublisher{l: l}
	}
	ctx, cancel := context.WithCancel(context.Background())

	collector := &LogCollector{
		l:      l,
		config: config,
		ignore: make(map[string]struct{}, len(config.IgnoreFields)),
		logMap: make(map[string]*AggregatedLogEntry),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, k := range config.IgnoreFields {
		collector.ignore[k] = struct{}{}
	}

	collector.wg.Add(1)
	go collector.periodicFlush()

	return collector
}

func (d *LogCollector) Warn(msg string, fields ...Field) {
	if d.add("warn", msg, fields) {
		d.l.Warn(msg, fields...)
	}
}

func (d *LogCollector) Error(msg string, fields ...Field) {
	if d.add("error", msg, fields) {
		d.l.Error(msg, fields...)
	}
}

// add records one occurrence and reports whether it is the first since the last flush.
func (d *LogCollector) add(level, message string, fields []Field) bool {
	values := make(map[string]interface{}, len(fields))
	keyed := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		k, v := f.GetKeyValue()
		values[k] = v
		if _, skip := d.ignore[k]; !skip {
			keyed[k] = v
		}
	}
	key := d.generateKey(level, message, keyed)
	now := d.now()

	var batch []AggregatedLogEntry
	d.mutex.Lock()
	entry, exists := d.logMap[key]
	if exists {
		entry.Count++
		entry.LastSeen = now
	} else {
		d.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    values,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
		if len(d.logMap) >= d.config.MaxKeys {
			batch = d.drain()
		}
	}
	d.mutex.Unlock()

	d.publish(batch)
	return !exists
}

func (d *LogCollector) generateKey(level, message string, fields map[string]interface{}) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}{
		Level:   level,
		Message: message,
		Fields:  fields,
	}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return fmt.Sprintf("%x", hash)
}

func (d *LogCollector) periodicFlush() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-d.ctx.Done():
			d.Flush()
			return
		}
	}
}

// Flush publishes the repeated entries collected so far and starts a new window.
func (d *LogCollector) Flush() {
	d.mutex.Lock()
	batch := d.drain()
	d.mutex.Unlock()

	d.publish(batch)
}

// drain must be called with the mutex held. Entries seen once were already logged.
func (d *LogCollector) drain() []AggregatedLogEntry {
	var logs []AggregatedLogEntry
	for _, entry := range d.logMap {
		if entry.Count > 1 {
			logs = append(logs, *entry)
		}
	}
	d.logMap = make(map[string]*AggregatedLogEntry)
	sort.Slice(logs, func(i, j int) bool { return logs[i].FirstSeen.Before(logs[j].FirstSeen) })
	return logs
}

func (d *LogCollector) publish(logs []AggregatedLogEntry) {
	if len(logs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.config.Publisher.Publish(ctx, logs); err != nil {
		d.l.Error("publish aggregated logs", Int("entries", len(logs)), Error(err))
	}
}

// Close stops the flush loop after a final flush.
func (d *LogCollector) Close() {
	d.cancel()
	d.wg.Wait()
}

type summaryPublisher struct {
	l *Logger
}

func (p summaryPublisher) Publish(_ context.Context, entries []AggregatedLogEntry) error {
	for _, e := range entries {
		fields := make([]Field, 0, len(e.Fields)+4)
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, Any(k, e.Fields[k]))
		}
		fields = append(fields,
			String("repeated", e.Message),
			Int("count", e.Count),
			String("first_seen", e.FirstSeen.UTC().Format(time.RFC3339)),
			String("last_seen", e.LastSeen.UTC().Format(time.RFC3339)),
		)
		if e.Level == "error" {
			p.l.Error("repeated log summary", fields...)
		} else {
			p.l.Warn("repeated log summary", fields...)
		}
	}
	return nil
}
