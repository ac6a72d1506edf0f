package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"MarketMinute/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer wraps Kafka readers with a worker pool.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	queues   []chan *message
	dlq      *kafka.Writer
	partMu   sync.Mutex
	stalled  map[string]map[int]int64
	started  bool

	// replaced in tests
	commit  func(ctx context.Context, topic string, km kafka.Message) error
	publish func(ctx context.Context, msgs ...kafka.Message) error
}

type message struct {
	topic string
	data  []byte
	km    kafka.Message
}

// NewConsumer creates a new Kafka consumer. Nothing connects until Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    10e3,
		MaxBytes:    10e6,
		ReadTimeout: 3 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		stopChan: make(chan struct{}),
		queues:   make([]chan *message, cfg.WorkerCount),
		stalled:  make(map[string]map[int]int64),
	}
	for i := range c.queues {
		c.queues[i] = make(chan *message, cfg.BufferSize)
	}
	c.commit = c.commitReader

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
		c.publish = c.dlq.WriteMessages
	}

	return c, nil
}

// RegisterHandler registers a message handler for its topic. The first registration wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start creates one reader per registered topic and launches the workers.
func (c *Consumer) Start() error {
	if c.started {
		return fmt.Errorf("consumer already started")
	}
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	c.started = true

	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}

	c.startWorkers()

	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.consumeMessages(topic, reader)
	}

	c.log.Info("kafka consumer started",
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.readers)),
		logger.String("group_id", c.cfg.GroupID),
	)
	return nil
}

func (c *Consumer) startWorkers() {
	for _, q := range c.queues {
		c.wg.Add(1)
		go c.messageWorker(q)
	}
}

// Stop stops the consumer gracefully, waiting for in-flight messages until ctx expires.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		close(c.stopChan)
		for _, q := range c.queues {
			close(q)
		}

		stopErr = c.waitForWg(ctx)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Error("close kafka reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("close dlq writer", logger.Error(err))
			}
		}

		if stopErr == nil {
			c.log.Info("kafka consumer stopped")
		}
	})

	return stopErr
}

func (c *Consumer) waitForWg(ctx context.Context) error {
	doneChan := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(doneChan)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-doneChan:
		return nil
	}
}

func (c *Consumer) consumeMessages(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReadTimeout)
		msg, err := reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.log.Error("kafka read", logger.String("topic", topic), logger.Error(err))
			}
			continue
		}

		if !c.enqueue(&message{topic: topic, data: msg.Value, km: msg}) {
			return
		}
	}
}

// enqueue blocks until the partition's worker has room or the consumer is stopping.
// A partition always maps to the same worker, so its messages are handled in offset order.
func (c *Consumer) enqueue(m *message) (ok bool) {
	defer func() {
		// queues are closed by Stop; a send racing with it means we are done.
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.queues[c.queueFor(m.topic, m.km.Partition)] <- m:
		return true
	case <-c.stopChan:
		return false
	}
}

func (c *Consumer) queueFor(topic string, partition int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return int((h.Sum32() + uint32(partition)) % uint32(len(c.queues)))
}

func (c *Consumer) messageWorker(q <-chan *message) {
	defer c.wg.Done()

	for msg := range q {
		c.process(msg)
	}
}

// process runs the handler with retries, then dead-letters or commits.
func (c *Consumer) process(msg *message) {
	handler, ok := c.handlers[msg.topic]
	if !ok {
		return
	}

	start := time.Now()
	attempts, err := c.handleWithRetry(handler, msg.data)

	if err != nil {
		c.log.Error("kafka message failed",
			logger.String("topic", msg.topic),
			logger.Int("attempts", attempts),
			logger.Int64("offset", msg.km.Offset),
			logger.Error(err),
		)
		if c.publish != nil {
			if dlqErr := c.publish(context.Background(), kafka.Message{
				Topic:   c.cfg.DLQTopic,
				Key:     msg.km.Key,
				Value:   msg.data,
				Time:    time.Now(),
				Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.topic)}},
			}); dlqErr != nil {
				c.log.Error("kafka dlq write", logger.String("dlq_topic", c.cfg.DLQTopic), logger.Error(dlqErr))
			}
		}
	}

	// Without a DLQ a failure stalls its partition: nothing past it is committed,
	// so the group resumes from the failed offset after a restart or rebalance.
	if err != nil && c.publish == nil {
		c.stall(msg.topic, msg.km.Partition, msg.km.Offset)
	}
	if failed, ok := c.stalledAt(msg.topic, msg.km.Partition); ok {
		if err == nil {
			c.log.Warn("kafka partition stalled, offset left uncommitted",
				logger.String("topic", msg.topic),
				logger.Int("partition", msg.km.Partition),
				logger.Int64("offset", msg.km.Offset),
				logger.Int64("failed_offset", failed),
			)
		}
	} else {
		_ = c.commitWithRetry(msg.topic, msg.km, 3)
	}

	if c.cfg.Observer != nil {
		c.cfg.Observer(msg.topic, time.Since(start).Seconds(), err)
	}
}

func (c *Consumer) handleWithRetry(handler MessageHandler, data []byte) (attempts int, err error) {
	for {
		attempts++
		err = c.safeHandle(handler, data)
		if err == nil || attempts > c.cfg.RetryMax {
			return attempts, err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopChan:
			return attempts, err
		}
	}
}

func (c *Consumer) safeHandle(handler MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for %s: %v", handler.Topic(), r)
		}
	}()
	return handler.Handle(context.Background(), data)
}

func (c *Consumer) commitReader(ctx context.Context, topic string, km kafka.Message) error {
	reader := c.readers[topic]
	if reader == nil {
		return nil
	}
	return reader.CommitMessages(ctx, km)
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(topic string, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = c.commit(ctx, topic, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit", logger.String("topic", topic), logger.Int("attempts", max), logger.Error(err))
	return err
}

// stall records the first uncommitted failure of a partition.
func (c *Consumer) stall(topic string, partition int, offset int64) {
	c.partMu.Lock()
	defer c.partMu.Unlock()

	m, ok := c.stalled[topic]
	if !ok {
		m = make(map[int]int64)
		c.stalled[topic] = m
	}
	if _, ok := m[partition]; !ok {
		m[partition] = offset
	}
}

func (c *Consumer) stalledAt(topic string, partition int) (int64, bool) {
	c.partMu.Lock()
	defer c.partMu.Unlock()

	offset, ok := c.stalled[topic][partition]
	return offset, ok
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := min
	for i := 1; i < attempt && exp < max; i++ {
		exp *= 2
	}
	if exp > max {
		exp = max
	}
	// jitter up to 50%
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}
