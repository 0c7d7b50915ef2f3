package device

import (
	"fmt"
	"math/rand"
	"time"
)

// CorruptedValue is the sentinel emitted in place of a real measurement
// when corruption injection fires. It bypasses the min/max clamp.
const CorruptedValue = -999999.0

// defaultDelayMS is the read-delay duration applied when DelayChance is set
// without an explicit DelayMS.
const defaultDelayMS = 5000

// SensorConfig holds the configuration for a sensor device.
//
// The emitted value is Base + accumulated drift + uniform noise in
// [-Amplitude, +Amplitude]. Drift grows linearly at DriftRate units per
// second of simulated time. Min/Max, when set, clamp the emitted value.
//
// CorruptionRate and DelayChance are opt-in fault injection, both
// probabilities in [0, 1] evaluated per tick: a corrupted sample carries
// CorruptedValue instead of a measurement, and a delayed tick stalls for
// DelayMS before producing its reading.
type SensorConfig struct {
	Base       float64  `json:"base"`
	Amplitude  float64  `json:"amplitude"`
	DriftRate  float64  `json:"drift_rate,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	IntervalMS int      `json:"interval_ms,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`

	CorruptionRate float64 `json:"corruption_rate,omitempty"`
	DelayChance    float64 `json:"delay_chance,omitempty"`
	DelayMS        int     `json:"delay_ms,omitempty"`
}

// Sensor is the measuring device variant.
type Sensor struct {
	id   string
	name string
	cfg  SensorConfig
	rng  *rand.Rand

	drift    float64
	last     float64
	lastTick time.Time
	seq      uint64
}

// NewSensor constructs a sensor from its config. A nil rng selects a
// clock-seeded entropy source; tests inject a fixed-seed source instead.
func NewSensor(id, name string, cfg SensorConfig, rng *rand.Rand) (*Sensor, error) {
	if cfg.Amplitude < 0 {
		return nil, fmt.Errorf("%w: amplitude must not be negative", ErrInvalidParameter)
	}
	if cfg.IntervalMS < 0 {
		return nil, fmt.Errorf("%w: interval_ms must not be negative", ErrInvalidParameter)
	}
	if cfg.Min != nil && cfg.Max != nil && *cfg.Min > *cfg.Max {
		return nil, fmt.Errorf("%w: min must not exceed max", ErrInvalidParameter)
	}
	if cfg.CorruptionRate < 0 || cfg.CorruptionRate > 1 {
		return nil, fmt.Errorf("%w: corruption_rate must be between 0 and 1", ErrInvalidParameter)
	}
	if cfg.DelayChance < 0 || cfg.DelayChance > 1 {
		return nil, fmt.Errorf("%w: delay_chance must be between 0 and 1", ErrInvalidParameter)
	}
	if cfg.DelayMS < 0 {
		return nil, fmt.Errorf("%w: delay_ms must not be negative", ErrInvalidParameter)
	}
	if cfg.IntervalMS == 0 {
		cfg.IntervalMS = defaultSensorIntervalMS
	}
	if cfg.DelayChance > 0 && cfg.DelayMS == 0 {
		cfg.DelayMS = defaultDelayMS
	}
	if rng == nil {
		rng = newEntropy()
	}

	return &Sensor{
		id:   id,
		name: name,
		cfg:  cfg,
		rng:  rng,
		last: cfg.Base,
	}, nil
}

func (s *Sensor) ID() string   { return s.id }
func (s *Sensor) Name() string { return s.name }
func (s *Sensor) Kind() Kind   { return KindSensor }

// Interval returns the sensor's sample cadence.
func (s *Sensor) Interval() time.Duration {
	return time.Duration(s.cfg.IntervalMS) * time.Millisecond
}

// Tick produces the next sample. Drift accumulates against wall-clock
// elapsed time, not tick count, so a lagging schedule does not slow the
// drift down.
//
// Fault injection runs here: a delayed tick blocks holding the device
// token, which shows up as scheduling lag, exactly like a slow real read.
func (s *Sensor) Tick(now time.Time) Reading {
	if s.cfg.DelayChance > 0 && s.rng.Float64() < s.cfg.DelayChance {
		time.Sleep(time.Duration(s.cfg.DelayMS) * time.Millisecond)
	}

	if !s.lastTick.IsZero() {
		s.drift += s.cfg.DriftRate * now.Sub(s.lastTick).Seconds()
	}
	s.lastTick = now

	value := s.cfg.Base + s.drift
	if s.cfg.Amplitude > 0 {
		value += (s.rng.Float64()*2 - 1) * s.cfg.Amplitude
	}
	value = s.clamp(value)

	if s.cfg.CorruptionRate > 0 && s.rng.Float64() < s.cfg.CorruptionRate {
		value = CorruptedValue
	}

	s.last = value
	s.seq++

	return Reading{
		DeviceID:  s.id,
		Kind:      KindSensor,
		Seq:       s.seq,
		Timestamp: now,
		Value:     value,
		Unit:      s.cfg.Unit,
	}
}

// Apply handles sensor commands. Sensors accept reconfigure (an alias for
// Configure with the command params as the delta) and nothing else.
func (s *Sensor) Apply(cmd Command) (State, error) {
	switch cmd.Name {
	case CmdReconfigure:
		return s.Configure(cmd.Params)
	default:
		return nil, fmt.Errorf("%w: %q not supported by sensor", ErrInvalidCommand, cmd.Name)
	}
}

// Configure applies a config delta. Supported keys: base, amplitude,
// drift_rate, unit, interval_ms, min, max, corruption_rate, delay_chance,
// delay_ms. Setting base or drift_rate resets the accumulated drift.
func (s *Sensor) Configure(delta map[string]any) (State, error) {
	next := s.cfg
	resetDrift := false

	for key, raw := range delta {
		switch key {
		case "base":
			v, err := floatParam(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: base must be a number", ErrInvalidParameter)
			}
			next.Base = v
			resetDrift = true
		case "amplitude":
			v, err := floatParam(raw)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("%w: amplitude must be a non-negative number", ErrInvalidParameter)
			}
			next.Amplitude = v
		case "drift_rate":
			v, err := floatParam(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: drift_rate must be a number", ErrInvalidParameter)
			}
			next.DriftRate = v
			resetDrift = true
		case "unit":
			v, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: unit must be a string", ErrInvalidParameter)
			}
			next.Unit = v
		case "interval_ms":
			v, err := intParam(raw)
			if err != nil || v < 1 {
				return nil, fmt.Errorf("%w: interval_ms must be a positive integer", ErrInvalidParameter)
			}
			next.IntervalMS = v
		case "min":
			if raw == nil {
				next.Min = nil
				break
			}
			v, err := floatParam(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: min must be a number", ErrInvalidParameter)
			}
			next.Min = &v
		case "max":
			if raw == nil {
				next.Max = nil
				break
			}
			v, err := floatParam(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: max must be a number", ErrInvalidParameter)
			}
			next.Max = &v
		case "corruption_rate":
			v, err := floatParam(raw)
			if err != nil || v < 0 || v > 1 {
				return nil, fmt.Errorf("%w: corruption_rate must be between 0 and 1", ErrInvalidParameter)
			}
			next.CorruptionRate = v
		case "delay_chance":
			v, err := floatParam(raw)
			if err != nil || v < 0 || v > 1 {
				return nil, fmt.Errorf("%w: delay_chance must be between 0 and 1", ErrInvalidParameter)
			}
			next.DelayChance = v
		case "delay_ms":
			v, err := intParam(raw)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("%w: delay_ms must not be negative", ErrInvalidParameter)
			}
			next.DelayMS = v
		default:
			return nil, fmt.Errorf("%w: unknown sensor config key %q", ErrInvalidParameter, key)
		}
	}

	if next.Min != nil && next.Max != nil && *next.Min > *next.Max {
		return nil, fmt.Errorf("%w: min must not exceed max", ErrInvalidParameter)
	}
	if next.DelayChance > 0 && next.DelayMS == 0 {
		next.DelayMS = defaultDelayMS
	}

	s.cfg = next
	if resetDrift {
		s.drift = 0
	}
	return s.state(), nil
}

// Summary returns a snapshot of the sensor.
func (s *Sensor) Summary() Summary {
	return Summary{
		ID:     s.id,
		Name:   s.name,
		Kind:   KindSensor,
		State:  s.state(),
		Config: s.cfg,
	}
}

func (s *Sensor) state() State {
	return State{
		"value": s.last,
		"drift": s.drift,
	}
}

func (s *Sensor) clamp(v float64) float64 {
	if s.cfg.Min != nil && v < *s.cfg.Min {
		return *s.cfg.Min
	}
	if s.cfg.Max != nil && v > *s.cfg.Max {
		return *s.cfg.Max
	}
	return v
}

// floatParam coerces a JSON-decoded numeric parameter to float64.
func floatParam(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("not a number: %v", raw)
	}
}
