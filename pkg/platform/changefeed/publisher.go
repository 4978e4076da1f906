// Package changefeed publishes domain changes (alerts, autonomy events) to an
// external log such as Kafka. Publishing is fail-open: callers never block on the
// sink, and a failing sink trips a circuit breaker instead of backing up requests.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"permitpulse/pkg/platform/circuit"
)

// Message is one keyed record bound for a topic.
type Message struct {
	Topic string
	Key   string
	Value []byte
	At    time.Time
}

// Sink delivers a batch of messages.
type Sink interface {
	Send(ctx context.Context, batch []Message) error
}

// Publisher buffers messages and flushes them to the sink in the background.
// A nil *Publisher accepts and discards everything.
type Publisher struct {
	sink      Sink
	buffer    *RingBuffer
	breaker   *circuit.Breaker
	logger    *slog.Logger
	metrics   *Metrics
	batchSize int
	interval  time.Duration
	wake      chan struct{}
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) { p.breaker = b }
}

// WithCapacity bounds the number of pending messages.
func WithCapacity(n int) Option {
	return func(p *Publisher) { p.buffer = NewRingBuffer(n) }
}

func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// New creates a publisher. Call Run to start flushing.
func New(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:      sink,
		buffer:    NewRingBuffer(1024),
		breaker:   circuit.New("changefeed", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		logger:    slog.Default(),
		batchSize: 100,
		interval:  time.Second,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish JSON-encodes v and queues it for topic. It never blocks on the sink.
func (p *Publisher) Publish(ctx context.Context, topic, key string, v any) {
	if p == nil || topic == "" {
		return
	}
	value, err := json.Marshal(v)
	if err != nil {
		p.logger.WarnContext(ctx, "changefeed encode failed", "topic", topic, "error", err)
		return
	}
	if p.buffer.Enqueue(Message{Topic: topic, Key: key, Value: value, At: time.Now()}) {
		p.metrics.IncDropped()
	}
	p.metrics.SetPending(p.buffer.Len())
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run flushes on every interval tick or wake-up until ctx ends, then makes a
// final best-effort flush.
func (p *Publisher) Run(ctx context.Context) error {
	if p == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.Flush(drainCtx)
			cancel()
			if err != nil {
				p.logger.Warn("changefeed final flush incomplete", "pending", p.buffer.Len(), "error", err)
			}
			return nil
		case <-ticker.C:
		case <-p.wake:
		}
		if err := p.Flush(ctx); err != nil {
			p.logger.WarnContext(ctx, "changefeed flush failed", "pending", p.buffer.Len(), "error", err)
		}
	}
}

// Flush sends every pending message, batch by batch. A failed batch is requeued
// and the breaker records the failure.
func (p *Publisher) Flush(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for p.buffer.Len() > 0 {
		if !p.breaker.Allow() {
			p.metrics.SetBreakerOpen(true)
			return fmt.Errorf("changefeed sink unavailable: circuit open")
		}
		batch := p.buffer.DequeueBatch(p.batchSize)
		if err := p.sink.Send(ctx, batch); err != nil {
			p.buffer.Requeue(batch)
			_, change := p.breaker.RecordFailure()
			if change.Opened {
				p.metrics.SetBreakerOpen(true)
				p.logger.WarnContext(ctx, "changefeed circuit opened", "error", err)
			}
			p.metrics.IncSendFailures()
			return err
		}
		if _, change := p.breaker.RecordSuccess(); change.Closed {
			p.metrics.SetBreakerOpen(false)
			p.logger.InfoContext(ctx, "changefeed circuit closed")
		}
		p.metrics.AddSent(len(batch))
		p.metrics.SetPending(p.buffer.Len())
	}
	return nil
}

// Pending returns the number of unsent messages.
func (p *Publisher) Pending() int {
	if p == nil {
		return 0
	}
	return p.buffer.Len()
}
