package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fleetsim/fleetsim-core/internal/device"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/influxdb"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/mqtt"
)

// Sink receives readings from the hub's forwarder goroutine. Persist errors
// are logged and counted by the hub; implementations should fail fast
// rather than block the forwarder.
type Sink interface {
	Name() string
	Persist(ctx context.Context, r device.Reading) error
}

// StoreSink persists readings to the SQLite history table.
//
// A circuit breaker guards the repository: after repeated failures
// (database locked, disk full) the breaker opens and readings are shed
// quickly instead of each one waiting out the busy timeout.
type StoreSink struct {
	repo    device.Repository
	breaker *gobreaker.CircuitBreaker
}

// NewStoreSink wraps a repository in a breaker-guarded sink.
func NewStoreSink(repo device.Repository) *StoreSink {
	return &StoreSink{
		repo: repo,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "reading-store",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *StoreSink) Name() string { return "store" }

// Persist appends the reading to the history table.
func (s *StoreSink) Persist(ctx context.Context, r device.Reading) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.repo.AppendReading(ctx, r)
	})
	if err != nil {
		return fmt.Errorf("store sink: %w", err)
	}
	return nil
}

// MQTTSink publishes readings on per-device telemetry topics.
type MQTTSink struct {
	client *mqtt.Client
}

// NewMQTTSink creates a sink publishing to the given client.
func NewMQTTSink(client *mqtt.Client) *MQTTSink {
	return &MQTTSink{client: client}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Persist publishes the reading as JSON. A disconnected broker is an error
// here; the hub counts it and the paho auto-reconnect recovers the session.
func (s *MQTTSink) Persist(_ context.Context, r device.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("mqtt sink: marshal reading: %w", err)
	}
	if err := s.client.PublishTelemetry(string(r.Kind), r.DeviceID, payload); err != nil {
		return fmt.Errorf("mqtt sink: %w", err)
	}
	return nil
}

// InfluxSink writes readings to InfluxDB as time-series points.
type InfluxSink struct {
	client *influxdb.Client
}

// NewInfluxSink creates a sink writing to the given client.
func NewInfluxSink(client *influxdb.Client) *InfluxSink {
	return &InfluxSink{client: client}
}

func (s *InfluxSink) Name() string { return "influxdb" }

// Persist enqueues the reading on the client's batched write API. Write
// errors surface asynchronously through the client's error callback, so
// this only fails when the value type is unusable.
func (s *InfluxSink) Persist(_ context.Context, r device.Reading) error {
	var value float64
	switch v := r.Value.(type) {
	case float64:
		value = v
	case bool:
		if v {
			value = 1
		}
	default:
		return fmt.Errorf("influx sink: unsupported value type %T", r.Value)
	}

	s.client.WriteReading(r.DeviceID, string(r.Kind), value, r.Unit, r.Timestamp)
	return nil
}
