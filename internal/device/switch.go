package device

import (
	"fmt"
	"time"
)

// SwitchConfig holds the configuration for a switch device.
//
// An active switch (Passive false) only changes state through commands; its
// tick is a no-op that reports the current state. A passive switch models an
// externally driven contact (PIR, door sensor) that flips itself on every
// tick and rejects user commands.
type SwitchConfig struct {
	DefaultOn  bool `json:"default_on"`
	Passive    bool `json:"passive,omitempty"`
	IntervalMS int  `json:"interval_ms,omitempty"`
}

// Switch is the on/off device variant.
type Switch struct {
	id   string
	name string
	cfg  SwitchConfig
	on   bool
	seq  uint64
}

// NewSwitch constructs a switch from its config.
func NewSwitch(id, name string, cfg SwitchConfig) (*Switch, error) {
	if cfg.IntervalMS < 0 {
		return nil, fmt.Errorf("%w: interval_ms must not be negative", ErrInvalidParameter)
	}
	if cfg.IntervalMS == 0 {
		cfg.IntervalMS = defaultSwitchIntervalMS
	}

	return &Switch{
		id:   id,
		name: name,
		cfg:  cfg,
		on:   cfg.DefaultOn,
	}, nil
}

func (s *Switch) ID() string   { return s.id }
func (s *Switch) Name() string { return s.name }
func (s *Switch) Kind() Kind   { return KindSwitch }

// Interval returns the switch's tick cadence.
func (s *Switch) Interval() time.Duration {
	return time.Duration(s.cfg.IntervalMS) * time.Millisecond
}

// Tick reports the switch state. Passive switches flip themselves first.
func (s *Switch) Tick(now time.Time) Reading {
	if s.cfg.Passive {
		s.on = !s.on
	}
	s.seq++

	return Reading{
		DeviceID:  s.id,
		Kind:      KindSwitch,
		Seq:       s.seq,
		Timestamp: now,
		Value:     s.on,
	}
}

// Apply executes turn_on, turn_off or toggle. Passive switches reject all
// commands: their state is driven by the simulation, not by callers.
func (s *Switch) Apply(cmd Command) (State, error) {
	if s.cfg.Passive {
		return nil, fmt.Errorf("%w: passive switch %q cannot be commanded", ErrInvalidCommand, s.name)
	}

	switch cmd.Name {
	case CmdTurnOn:
		s.on = true
	case CmdTurnOff:
		s.on = false
	case CmdToggle:
		s.on = !s.on
	default:
		return nil, fmt.Errorf("%w: %q not supported by switch", ErrInvalidCommand, cmd.Name)
	}

	return s.state(), nil
}

// Configure applies a config delta. Supported keys: default_on, interval_ms.
// The passive flag is fixed at creation.
func (s *Switch) Configure(delta map[string]any) (State, error) {
	next := s.cfg

	for key, raw := range delta {
		switch key {
		case "default_on":
			v, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: default_on must be a boolean", ErrInvalidParameter)
			}
			next.DefaultOn = v
		case "interval_ms":
			v, err := intParam(raw)
			if err != nil || v < 1 {
				return nil, fmt.Errorf("%w: interval_ms must be a positive integer", ErrInvalidParameter)
			}
			next.IntervalMS = v
		default:
			return nil, fmt.Errorf("%w: unknown switch config key %q", ErrInvalidParameter, key)
		}
	}

	s.cfg = next
	return s.state(), nil
}

// Summary returns a snapshot of the switch.
func (s *Switch) Summary() Summary {
	return Summary{
		ID:     s.id,
		Name:   s.name,
		Kind:   KindSwitch,
		State:  s.state(),
		Config: s.cfg,
	}
}

func (s *Switch) state() State {
	return State{"on": s.on}
}

// intParam coerces a JSON-decoded numeric parameter to int.
// JSON numbers arrive as float64; direct ints come from Go callers.
func intParam(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("not a number: %v", raw)
	}
}
