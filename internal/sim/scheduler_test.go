package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/fleetsim/fleetsim-core/internal/device"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/metrics"
	"github.com/fleetsim/fleetsim-core/internal/telemetry"
)

func newTestScheduler(t *testing.T) (*Scheduler, *device.Registry, *telemetry.Hub) {
	t.Helper()
	reg := device.NewRegistry()
	hub := telemetry.NewHub(telemetry.Config{SubscriberBuffer: 1024}, metrics.New(), nil)
	sched := NewScheduler(reg, hub, metrics.New(), nil, 100*time.Millisecond)
	t.Cleanup(func() {
		sched.StopAll()
		hub.Close()
	})
	return sched, reg, hub
}

func addFastSensor(t *testing.T, reg *device.Registry, id string) {
	t.Helper()
	s, err := device.NewSensor(id, "Fast Sensor", device.SensorConfig{
		Base: 20, IntervalMS: 10,
	}, nil)
	if err != nil {
		t.Fatalf("NewSensor() error = %v", err)
	}
	if err := reg.Add(s); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}

func TestSchedulerTicksDevice(t *testing.T) {
	sched, reg, hub := newTestScheduler(t)
	addFastSensor(t, reg, "sensor-1")

	sub := hub.Subscribe("test")
	defer sub.Close()

	if err := sched.Start("sensor-1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var lastSeq uint64
	deadline := time.After(2 * time.Second)
	for lastSeq < 3 {
		select {
		case r := <-sub.C():
			if r.DeviceID != "sensor-1" {
				t.Fatalf("reading from %q, want sensor-1", r.DeviceID)
			}
			if r.Seq != lastSeq+1 {
				t.Fatalf("Seq = %d, want %d", r.Seq, lastSeq+1)
			}
			lastSeq = r.Seq
		case <-deadline:
			t.Fatalf("timed out waiting for ticks, got %d", lastSeq)
		}
	}
}

func TestSchedulerStopAwaitsTask(t *testing.T) {
	sched, reg, hub := newTestScheduler(t)
	addFastSensor(t, reg, "sensor-1")

	sub := hub.Subscribe("test")
	defer sub.Close()

	if err := sched.Start("sensor-1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Let it tick a few times, then stop.
	time.Sleep(50 * time.Millisecond)
	if err := sched.Stop("sensor-1"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// Drain everything published before Stop returned.
	for {
		select {
		case <-sub.C():
			continue
		default:
		}
		break
	}

	// No new readings may arrive after Stop has returned.
	select {
	case r := <-sub.C():
		t.Fatalf("reading (seq %d) published after Stop returned", r.Seq)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerStatusLifecycle(t *testing.T) {
	sched, reg, _ := newTestScheduler(t)
	addFastSensor(t, reg, "sensor-1")

	if got := sched.Status("sensor-1"); got != StatusStopped {
		t.Errorf("Status() = %v before Start, want stopped", got)
	}

	if err := sched.Start("sensor-1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := sched.Status("sensor-1"); got != StatusRunning {
		t.Errorf("Status() = %v after Start, want running", got)
	}
	if err := sched.Start("sensor-1"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	if err := sched.Stop("sensor-1"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := sched.Status("sensor-1"); got != StatusStopped {
		t.Errorf("Status() = %v after Stop, want stopped", got)
	}
	if err := sched.Stop("sensor-1"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestSchedulerTaskExitsWhenDeviceRemoved(t *testing.T) {
	sched, reg, _ := newTestScheduler(t)
	addFastSensor(t, reg, "sensor-1")

	if err := sched.Start("sensor-1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Pull the device out from under the task; the next tick attempt
	// finds it gone and the goroutine exits on its own.
	if err := reg.Remove("sensor-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// Stop still cleans up the bookkeeping for the exited task.
	if err := sched.Stop("sensor-1"); err != nil {
		t.Errorf("Stop() after removal error = %v", err)
	}
	if got := sched.Status("sensor-1"); got != StatusStopped {
		t.Errorf("Status() = %v, want stopped", got)
	}
}

func TestSchedulerStopAll(t *testing.T) {
	sched, reg, _ := newTestScheduler(t)
	addFastSensor(t, reg, "a")
	addFastSensor(t, reg, "b")

	if err := sched.Start("a"); err != nil {
		t.Fatalf("Start(a) error = %v", err)
	}
	if err := sched.Start("b"); err != nil {
		t.Fatalf("Start(b) error = %v", err)
	}
	if got := sched.Running(); got != 2 {
		t.Fatalf("Running() = %d, want 2", got)
	}

	sched.StopAll()
	if got := sched.Running(); got != 0 {
		t.Errorf("Running() = %d after StopAll, want 0", got)
	}
}
