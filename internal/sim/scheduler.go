package sim

import (
	"context"
	"sync"
	"time"

	"github.com/fleetsim/fleetsim-core/internal/device"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/metrics"
	"github.com/fleetsim/fleetsim-core/internal/telemetry"
)

// Status is the lifecycle state of a device task.
type Status string

// Status values.
const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// Logger interface for scheduler logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Scheduler runs one goroutine per device, ticking it on a nominal-time
// schedule and publishing each reading to the telemetry hub.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Scheduler struct {
	registry *device.Registry
	hub      *telemetry.Hub
	metrics  *metrics.Metrics
	logger   Logger

	// lagThreshold is the overrun above which a tick counts as an
	// overrun in the metrics and logs.
	lagThreshold time.Duration

	mu    sync.Mutex
	tasks map[string]*task
}

type task struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool
}

// NewScheduler creates a scheduler. Tasks are started per device via Start.
func NewScheduler(reg *device.Registry, hub *telemetry.Hub, m *metrics.Metrics, logger Logger, lagThreshold time.Duration) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	if lagThreshold <= 0 {
		lagThreshold = 100 * time.Millisecond
	}

	return &Scheduler{
		registry:     reg,
		hub:          hub,
		metrics:      m,
		logger:       logger,
		lagThreshold: lagThreshold,
		tasks:        make(map[string]*task),
	}
}

// Start launches the simulation task for a device. The first tick fires one
// interval after Start.
func (s *Scheduler) Start(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; ok {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.tasks[id] = t

	go s.run(ctx, id, t)
	return nil
}

// Stop cancels a device task and waits for its goroutine to exit. When Stop
// returns, no further readings from the device will be published; a tick
// already in flight completes first and its reading is delivered.
func (s *Scheduler) Stop(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotRunning
	}
	t.stopping = true
	s.mu.Unlock()

	t.cancel()
	<-t.done

	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
	return nil
}

// StopAll stops every running task and waits for all of them.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	tasks := make(map[string]*task, len(s.tasks))
	for id, t := range s.tasks {
		t.stopping = true
		tasks[id] = t
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}

	s.mu.Lock()
	for id := range tasks {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
}

// Status reports the lifecycle state of a device task.
func (s *Scheduler) Status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return StatusStopped
	}
	if t.stopping {
		return StatusStopping
	}
	return StatusRunning
}

// Running returns the number of running tasks.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// run is the per-device simulation loop.
//
// Deadlines advance by the device interval from the previous deadline, so
// overruns do not stretch the schedule; a late tick fires immediately and
// the lag is recorded. The interval is re-read every cycle under the
// device token so reconfiguration takes effect on the next tick.
func (s *Scheduler) run(ctx context.Context, id string, t *task) {
	defer close(t.done)

	s.metrics.DevicesRunning.Inc()
	defer s.metrics.DevicesRunning.Dec()

	var interval time.Duration
	if err := s.registry.WithDevice(id, func(d device.Device) error {
		interval = d.Interval()
		return nil
	}); err != nil {
		s.logger.Warn("device task exiting, device gone", "device_id", id)
		return
	}

	next := time.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := time.Now()
		if lag := now.Sub(next); lag > 0 {
			s.metrics.SchedulingLag.Observe(lag.Seconds())
			if lag > s.lagThreshold {
				s.metrics.SchedulingOverruns.Inc()
				s.logger.Warn("tick fired behind schedule",
					"device_id", id,
					"lag_ms", lag.Milliseconds())
			}
		}

		var (
			reading device.Reading
			kind    device.Kind
		)
		start := time.Now()
		err := s.registry.WithDevice(id, func(d device.Device) error {
			reading = d.Tick(now)
			kind = d.Kind()
			interval = d.Interval()
			return nil
		})
		if err != nil {
			// Removed from the registry; the task winds down on its own.
			return
		}

		s.hub.Publish(reading)

		s.metrics.TicksTotal.WithLabelValues(string(kind)).Inc()
		s.metrics.TickDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

		next = next.Add(interval)
		timer.Reset(time.Until(next))
	}
}
