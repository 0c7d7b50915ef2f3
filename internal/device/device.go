package device

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the device variant.
type Kind string

// Kind constants.
const (
	KindSwitch Kind = "switch"
	KindSensor Kind = "sensor"
)

// AllKinds returns all valid kind values.
func AllKinds() []Kind {
	return []Kind{KindSwitch, KindSensor}
}

// Default tick cadences applied when a config omits the interval.
const (
	defaultSensorIntervalMS = 1000
	defaultSwitchIntervalMS = 5000
)

// Command is a control operation targeted at a single device.
type Command struct {
	Name   string         `json:"command"`
	Params map[string]any `json:"params,omitempty"`
}

// Command name constants.
const (
	CmdTurnOn      = "turn_on"
	CmdTurnOff     = "turn_off"
	CmdToggle      = "toggle"
	CmdReconfigure = "reconfigure"
)

// State holds a device's observable runtime state as a JSON map.
//
// Examples:
//   - Switch: {"on": true}
//   - Sensor: {"value": 21.4, "drift": 0.02}
type State map[string]any

// Reading is an immutable sample produced by exactly one tick of one device.
// Value holds a float64 for sensors and a bool for switches.
type Reading struct {
	DeviceID  string    `json:"device_id"`
	Kind      Kind      `json:"kind"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
	Unit      string    `json:"unit,omitempty"`
}

// Summary is a point-in-time snapshot of a device for list/inspect operations.
// Config holds a copy of the variant config (SwitchConfig or SensorConfig).
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	State  State  `json:"state"`
	Config any    `json:"config"`
}

// Device is the fixed capability set shared by all variants.
//
// Implementations are pure state machines with no internal locking; callers
// must serialize access via Registry.WithDevice. Tick is deterministic given
// the runtime state, the supplied clock and the injected entropy source.
type Device interface {
	ID() string
	Name() string
	Kind() Kind

	// Interval is the device's current tick cadence. Re-read by the
	// scheduler every cycle so reconfiguration takes effect.
	Interval() time.Duration

	// Tick advances the simulation one step and returns the reading for
	// this step. Exactly one Reading is produced per call.
	Tick(now time.Time) Reading

	// Apply executes a control command, returning the new observable
	// state. Fails with ErrInvalidCommand if the command does not apply
	// to this variant, ErrInvalidParameter for out-of-range values.
	// State is never mutated on error.
	Apply(cmd Command) (State, error)

	// Configure applies a partial configuration delta, returning the new
	// observable state. Unknown keys and out-of-range values fail with
	// ErrInvalidParameter without mutating state.
	Configure(delta map[string]any) (State, error)

	Summary() Summary
}

// CreateSpec describes a device to be constructed. Exactly one of Switch or
// Sensor must be set, matching Kind.
type CreateSpec struct {
	Name   string        `json:"name"`
	Kind   Kind          `json:"kind"`
	Switch *SwitchConfig `json:"switch,omitempty"`
	Sensor *SensorConfig `json:"sensor,omitempty"`
}

// New constructs a device variant from a create spec.
// The entropy source for sensors is seeded from the clock; tests that need
// determinism construct sensors directly via NewSensor.
func New(id string, spec CreateSpec) (Device, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidParameter)
	}

	switch spec.Kind {
	case KindSwitch:
		cfg := SwitchConfig{}
		if spec.Switch != nil {
			cfg = *spec.Switch
		}
		return NewSwitch(id, spec.Name, cfg)
	case KindSensor:
		if spec.Sensor == nil {
			return nil, fmt.Errorf("%w: sensor config is required", ErrInvalidParameter)
		}
		return NewSensor(id, spec.Name, *spec.Sensor, nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, spec.Kind)
	}
}

// GenerateID allocates a fresh device ID. IDs are never reused.
func GenerateID() string {
	return uuid.NewString()
}

// newEntropy returns the default entropy source for sensors.
func newEntropy() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // Simulation noise, not security material
}
