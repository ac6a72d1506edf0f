package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type recordingHandler struct {
	mu       sync.Mutex
	calls    int
	failures int
	panicky  bool
}

func (h *recordingHandler) Topic() string { return "predictions" }

func (h *recordingHandler) Handle(_ context.Context, _ []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.panicky {
		panic("boom")
	}
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, opts ...ConsumerOption) (*Consumer, *[]kafka.Message, *atomic.Int64) {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(opts...)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	var dead []kafka.Message
	commits := &atomic.Int64{}
	c.commit = func(context.Context, string, kafka.Message) error {
		commits.Add(1)
		return nil
	}
	if c.publish != nil {
		c.publish = func(_ context.Context, msgs ...kafka.Message) error {
			dead = append(dead, msgs...)
			return nil
		}
	}
	return c, &dead, commits
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestProcessRetriesThenCommits(t *testing.T) {
	c, _, commits := newTestConsumer(t)
	h := &recordingHandler{failures: 2}
	c.RegisterHandler(h)

	c.process(&message{topic: "predictions", data: []byte("{}")})

	if h.calls != 3 {
		t.Fatalf("calls = %d, want 3", h.calls)
	}
	if commits.Load() != 1 {
		t.Fatalf("commits = %d, want 1", commits.Load())
	}
}

func TestProcessWithoutDLQLeavesFailureUncommitted(t *testing.T) {
	c, _, commits := newTestConsumer(t)
	h := &recordingHandler{failures: 10}
	c.RegisterHandler(h)

	c.process(&message{topic: "predictions"})

	if h.calls != 3 {
		t.Fatalf("calls = %d, want RetryMax+1", h.calls)
	}
	if commits.Load() != 0 {
		t.Fatalf("failed message must not be committed without a DLQ")
	}
}

type payloadHandler struct {
	mu   sync.Mutex
	seen []string
}

func (h *payloadHandler) Topic() string { return "predictions" }

func (h *payloadHandler) Handle(_ context.Context, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, string(data))
	if string(data) == "bad" {
		return errors.New("rejected")
	}
	return nil
}

func TestProcessWithoutDLQStallsPartitionAfterFailure(t *testing.T) {
	c, _, _ := newTestConsumer(t)
	var committed []int64
	c.commit = func(_ context.Context, _ string, km kafka.Message) error {
		committed = append(committed, km.Offset)
		return nil
	}
	c.RegisterHandler(&payloadHandler{})

	c.process(&message{topic: "predictions", data: []byte("bad"), km: kafka.Message{Partition: 0, Offset: 10}})
	c.process(&message{topic: "predictions", data: []byte("ok"), km: kafka.Message{Partition: 0, Offset: 11}})
	c.process(&message{topic: "predictions", data: []byte("ok"), km: kafka.Message{Partition: 1, Offset: 4}})

	if len(committed) != 1 || committed[0] != 4 {
		t.Fatalf("committed = %v, want only the other partition's offset 4", committed)
	}
	if failed, ok := c.stalledAt("predictions", 0); !ok || failed != 10 {
		t.Fatalf("stalledAt = %d,%v, want 10,true", failed, ok)
	}
}

func TestProcessWithDLQKeepsCommittingAfterFailure(t *testing.T) {
	c, dead, _ := newTestConsumer(t, WithConsumerDLQ("predictions.dlq"))
	var committed []int64
	c.commit = func(_ context.Context, _ string, km kafka.Message) error {
		committed = append(committed, km.Offset)
		return nil
	}
	c.RegisterHandler(&payloadHandler{})

	c.process(&message{topic: "predictions", data: []byte("bad"), km: kafka.Message{Offset: 10}})
	c.process(&message{topic: "predictions", data: []byte("ok"), km: kafka.Message{Offset: 11}})

	if len(*dead) != 1 {
		t.Fatalf("dlq = %d messages, want 1", len(*dead))
	}
	if len(committed) != 2 || committed[0] != 10 || committed[1] != 11 {
		t.Fatalf("committed = %v, want [10 11]", committed)
	}
}

func TestPartitionMessagesKeepOffsetOrderAcrossWorkers(t *testing.T) {
	c, _, _ := newTestConsumer(t, WithConsumerWorkers(4), WithConsumerBufferSize(4))
	h := &payloadHandler{}
	c.RegisterHandler(h)
	c.startWorkers()

	for i := 0; i < 20; i++ {
		m := &message{topic: "predictions", data: []byte{byte('a' + i)}, km: kafka.Message{Partition: 3, Offset: int64(i)}}
		if !c.enqueue(m) {
			t.Fatalf("enqueue %d failed", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(h.seen) != 20 {
		t.Fatalf("handled %d, want 20", len(h.seen))
	}
	for i, v := range h.seen {
		if v != string([]byte{byte('a' + i)}) {
			t.Fatalf("message %d out of order: %q", i, v)
		}
	}
}

func TestProcessDeadLettersPanics(t *testing.T) {
	var observed error
	c, dead, commits := newTestConsumer(t,
		WithConsumerDLQ("predictions.dlq"),
		WithConsumerObserver(func(_ string, _ float64, err error) { observed = err }),
	)
	c.RegisterHandler(&recordingHandler{panicky: true})

	c.process(&message{topic: "predictions", data: []byte("bad"), km: kafka.Message{Key: []byte("AAPL")}})

	if len(*dead) != 1 || (*dead)[0].Topic != "predictions.dlq" || string((*dead)[0].Value) != "bad" {
		t.Fatalf("unexpected dlq messages %+v", *dead)
	}
	if commits.Load() != 1 {
		t.Fatalf("dead-lettered message should be committed")
	}
	if observed == nil {
		t.Fatalf("observer should see the final error")
	}
}

func TestWorkersDrainOnStop(t *testing.T) {
	c, _, commits := newTestConsumer(t, WithConsumerWorkers(2), WithConsumerBufferSize(8))
	h := &recordingHandler{}
	c.RegisterHandler(h)
	c.startWorkers()

	for i := 0; i < 5; i++ {
		if !c.enqueue(&message{topic: "predictions", km: kafka.Message{Partition: i % 2}}) {
			t.Fatalf("enqueue %d failed", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.calls != 5 || commits.Load() != 5 {
		t.Fatalf("calls=%d commits=%d, want 5/5", h.calls, commits.Load())
	}
	if c.enqueue(&message{topic: "predictions"}) {
		t.Fatalf("enqueue after Stop should fail")
	}
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		if d <= 0 || d > 80*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}
