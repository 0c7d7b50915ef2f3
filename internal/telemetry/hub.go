package telemetry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fleetsim/fleetsim-core/internal/device"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/metrics"
)

// Logger interface for hub logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds hub tuning parameters.
type Config struct {
	// SubscriberBuffer is the per-subscriber channel capacity.
	SubscriberBuffer int

	// SinkBuffer is the capacity of the queue feeding sinks.
	SinkBuffer int
}

// Hub fans device readings out to subscribers and persistence sinks.
// See the package documentation for the delivery guarantees.
type Hub struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  Logger

	mu   sync.RWMutex
	subs map[string]*Subscription

	sinks  []Sink
	sinkCh chan device.Reading

	closeOnce sync.Once
	done      chan struct{}
	forwarded sync.WaitGroup
}

// NewHub creates a hub. Sinks are fixed at construction; subscribers attach
// and detach at runtime. Call Run to start the sink forwarder.
func NewHub(cfg Config, m *metrics.Metrics, logger Logger, sinks ...Sink) *Hub {
	if cfg.SubscriberBuffer < 1 {
		cfg.SubscriberBuffer = 256
	}
	if cfg.SinkBuffer < 1 {
		cfg.SinkBuffer = 1024
	}
	if logger == nil {
		logger = noopLogger{}
	}

	return &Hub{
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		subs:    make(map[string]*Subscription),
		sinks:   sinks,
		sinkCh:  make(chan device.Reading, cfg.SinkBuffer),
		done:    make(chan struct{}),
	}
}

// Run drains the sink queue until ctx is cancelled or the hub is closed.
// It returns after the queue's remaining readings have been offered to the
// sinks.
func (h *Hub) Run(ctx context.Context) {
	h.forwarded.Add(1)
	defer h.forwarded.Done()

	for {
		select {
		case <-ctx.Done():
			h.drainSinks(ctx)
			return
		case <-h.done:
			h.drainSinks(context.Background())
			return
		case r := <-h.sinkCh:
			h.persist(ctx, r)
		}
	}
}

// drainSinks offers whatever is left in the queue to the sinks.
func (h *Hub) drainSinks(ctx context.Context) {
	for {
		select {
		case r := <-h.sinkCh:
			h.persist(ctx, r)
		default:
			return
		}
	}
}

// persist forwards one reading to every sink. Failures are logged and
// counted; persistence is best-effort.
func (h *Hub) persist(ctx context.Context, r device.Reading) {
	for _, sink := range h.sinks {
		if err := sink.Persist(ctx, r); err != nil {
			h.metrics.PersistenceFailures.WithLabelValues(sink.Name()).Inc()
			h.logger.Warn("reading persistence failed",
				"sink", sink.Name(),
				"device_id", r.DeviceID,
				"seq", r.Seq,
				"error", err)
		}
	}
}

// Subscribe attaches a consumer. The name is a diagnostic label used in
// drop metrics; it need not be unique.
func (h *Hub) Subscribe(name string) *Subscription {
	sub := &Subscription{
		id:  name + "-" + uuid.NewString()[:8],
		ch:  make(chan device.Reading, h.cfg.SubscriberBuffer),
		hub: h,
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	h.metrics.Subscribers.Inc()
	return sub
}

// unsubscribe detaches a subscription and closes its channel.
func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub.id]
	if ok {
		delete(h.subs, sub.id)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.Subscribers.Dec()
		close(sub.ch)
	}
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish fans a reading out to all subscribers and queues it for the
// sinks. It never blocks: full buffers shed the oldest reading instead.
func (h *Hub) Publish(r device.Reading) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		h.offer(sub, r)
	}

	if len(h.sinks) > 0 {
		h.offerSink(r)
	}
}

// offer delivers a reading to one subscriber, dropping its oldest buffered
// reading if the channel is full.
func (h *Hub) offer(sub *Subscription, r device.Reading) {
	// The channel may be closed by an unsubscribe racing this send;
	// losing a reading to a departing subscriber is fine.
	defer func() {
		_ = recover()
	}()

	select {
	case sub.ch <- r:
		return
	default:
	}

	// Full: shed the oldest reading and try once more. If a concurrent
	// publisher won the freed slot, shed this reading instead.
	dropped := false
	select {
	case <-sub.ch:
		dropped = true
	default:
	}

	select {
	case sub.ch <- r:
	default:
		dropped = true
	}

	if dropped {
		sub.dropped.Add(1)
		h.metrics.ReadingsDropped.WithLabelValues(sub.id).Inc()
	}
}

// offerSink queues a reading for persistence, shedding the oldest queued
// reading when the sink queue is full.
func (h *Hub) offerSink(r device.Reading) {
	select {
	case h.sinkCh <- r:
		return
	default:
	}

	select {
	case <-h.sinkCh:
		h.metrics.PersistenceFailures.WithLabelValues("queue").Inc()
		h.logger.Warn("sink queue full, shedding oldest reading")
	default:
	}

	select {
	case h.sinkCh <- r:
	default:
	}
}

// Close detaches all subscribers, closing their channels, and stops Run.
// Safe to call multiple times.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		subs := h.subs
		h.subs = make(map[string]*Subscription)
		h.mu.Unlock()

		for _, sub := range subs {
			h.metrics.Subscribers.Dec()
			close(sub.ch)
		}
	})

	h.forwarded.Wait()
}
