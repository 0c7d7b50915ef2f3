package device

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func newTestSensor(t *testing.T, cfg SensorConfig) *Sensor {
	t.Helper()
	s, err := NewSensor("sensor-1", "Boiler Temp", cfg, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("NewSensor() error = %v", err)
	}
	return s
}

func TestSensorTickDeterministicWithoutNoise(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 20, Amplitude: 0, DriftRate: 0, Unit: "celsius"})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := s.Tick(now.Add(time.Duration(i) * time.Second))
		if r.Value != 20.0 {
			t.Errorf("tick %d: Value = %v, want 20", i, r.Value)
		}
		if r.Seq != uint64(i+1) {
			t.Errorf("tick %d: Seq = %d, want %d", i, r.Seq, i+1)
		}
		if r.Unit != "celsius" {
			t.Errorf("tick %d: Unit = %q, want celsius", i, r.Unit)
		}
	}
}

func TestSensorDriftAccumulatesWithElapsedTime(t *testing.T) {
	// 0.5 units/second of drift, no noise.
	s := newTestSensor(t, SensorConfig{Base: 10, DriftRate: 0.5})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// First tick establishes the drift clock; no drift yet.
	r := s.Tick(now)
	if r.Value != 10.0 {
		t.Fatalf("first tick Value = %v, want 10", r.Value)
	}

	// 4 seconds later: drift = 0.5 * 4 = 2.
	r = s.Tick(now.Add(4 * time.Second))
	if r.Value != 12.0 {
		t.Errorf("second tick Value = %v, want 12", r.Value)
	}

	// 6 more seconds: drift = 2 + 0.5*6 = 5.
	r = s.Tick(now.Add(10 * time.Second))
	if r.Value != 15.0 {
		t.Errorf("third tick Value = %v, want 15", r.Value)
	}
}

func TestSensorNoiseStaysWithinAmplitude(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 50, Amplitude: 2})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		r := s.Tick(now.Add(time.Duration(i) * time.Second))
		v := r.Value.(float64)
		if v < 48 || v > 52 {
			t.Fatalf("tick %d: Value = %v outside [48, 52]", i, v)
		}
	}
}

func TestSensorClampsToConfiguredRange(t *testing.T) {
	minV, maxV := 0.0, 100.0
	s := newTestSensor(t, SensorConfig{
		Base: 99, Amplitude: 5, DriftRate: 1,
		Min: &minV, Max: &maxV,
	})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		r := s.Tick(now.Add(time.Duration(i) * time.Second))
		v := r.Value.(float64)
		if v < minV || v > maxV {
			t.Fatalf("tick %d: Value = %v outside [%v, %v]", i, v, minV, maxV)
		}
	}
}

func TestSensorCorruptionInjection(t *testing.T) {
	minV, maxV := 0.0, 100.0
	s := newTestSensor(t, SensorConfig{
		Base: 20, CorruptionRate: 1,
		Min: &minV, Max: &maxV,
	})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		r := s.Tick(now.Add(time.Duration(i) * time.Second))
		// The sentinel is not clamped into [min, max].
		if r.Value != CorruptedValue {
			t.Fatalf("tick %d: Value = %v, want corruption sentinel %v", i, r.Value, CorruptedValue)
		}
	}
}

func TestSensorCorruptionDisabledByDefault(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 20})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		if r := s.Tick(now.Add(time.Duration(i) * time.Second)); r.Value != 20.0 {
			t.Fatalf("tick %d: Value = %v, want 20", i, r.Value)
		}
	}
}

func TestSensorReadDelayInjection(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 20, DelayChance: 1, DelayMS: 30})

	start := time.Now()
	r := s.Tick(start)
	elapsed := time.Since(start)

	if elapsed < 30*time.Millisecond {
		t.Errorf("delayed tick took %v, want >= 30ms", elapsed)
	}
	if r.Value != 20.0 {
		t.Errorf("delayed tick Value = %v, want 20", r.Value)
	}
}

func TestSensorDelayDefaultDuration(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 20, DelayChance: 0.5})
	if s.cfg.DelayMS != defaultDelayMS {
		t.Errorf("DelayMS = %d, want default %d", s.cfg.DelayMS, defaultDelayMS)
	}
}

func TestSensorConfigure(t *testing.T) {
	tests := []struct {
		name    string
		delta   map[string]any
		wantErr error
	}{
		{
			name:  "valid base change",
			delta: map[string]any{"base": 30.0},
		},
		{
			name:  "valid interval change",
			delta: map[string]any{"interval_ms": 250.0},
		},
		{
			name:    "negative amplitude",
			delta:   map[string]any{"amplitude": -1.0},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "zero interval",
			delta:   map[string]any{"interval_ms": 0.0},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "unknown key",
			delta:   map[string]any{"colour": "red"},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "min above max",
			delta:   map[string]any{"min": 10.0, "max": 5.0},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "non-numeric base",
			delta:   map[string]any{"base": "warm"},
			wantErr: ErrInvalidParameter,
		},
		{
			name:  "valid corruption rate",
			delta: map[string]any{"corruption_rate": 0.01},
		},
		{
			name:    "corruption rate above 1",
			delta:   map[string]any{"corruption_rate": 1.5},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "negative delay chance",
			delta:   map[string]any{"delay_chance": -0.1},
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "negative delay duration",
			delta:   map[string]any{"delay_ms": -50.0},
			wantErr: ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSensor(t, SensorConfig{Base: 20, Amplitude: 1})
			_, err := s.Configure(tt.delta)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Configure() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSensorConfigureRejectionLeavesStateUntouched(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 20, Amplitude: 1})

	before := s.Summary()
	if _, err := s.Configure(map[string]any{"base": 99.0, "amplitude": -1.0}); err == nil {
		t.Fatal("Configure() with invalid amplitude should fail")
	}
	after := s.Summary()

	if before.Config != after.Config {
		t.Errorf("config changed on rejected delta: %+v -> %+v", before.Config, after.Config)
	}
}

func TestSensorConfigureResetsDriftOnBaseChange(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 10, DriftRate: 1})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Tick(now)
	s.Tick(now.Add(5 * time.Second)) // drift = 5

	state, err := s.Configure(map[string]any{"base": 20.0})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if state["drift"] != 0.0 {
		t.Errorf("drift after base change = %v, want 0", state["drift"])
	}

	r := s.Tick(now.Add(5 * time.Second))
	if r.Value != 20.0 {
		t.Errorf("first tick after reconfigure Value = %v, want 20", r.Value)
	}
}

func TestSensorRejectsSwitchCommands(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 20})

	for _, name := range []string{CmdTurnOn, CmdTurnOff, CmdToggle} {
		if _, err := s.Apply(Command{Name: name}); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Apply(%q) error = %v, want ErrInvalidCommand", name, err)
		}
	}
}

func TestSensorReconfigureCommand(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 20})

	state, err := s.Apply(Command{
		Name:   CmdReconfigure,
		Params: map[string]any{"base": 25.0},
	})
	if err != nil {
		t.Fatalf("Apply(reconfigure) error = %v", err)
	}
	if state == nil {
		t.Fatal("Apply(reconfigure) returned nil state")
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if r := s.Tick(now); r.Value != 25.0 {
		t.Errorf("Value after reconfigure = %v, want 25", r.Value)
	}
}

func TestNewSensorValidation(t *testing.T) {
	minV, maxV := 10.0, 5.0
	tests := []struct {
		name string
		cfg  SensorConfig
	}{
		{"negative amplitude", SensorConfig{Amplitude: -1}},
		{"negative interval", SensorConfig{IntervalMS: -100}},
		{"min above max", SensorConfig{Min: &minV, Max: &maxV}},
		{"corruption rate above 1", SensorConfig{CorruptionRate: 1.5}},
		{"negative delay chance", SensorConfig{DelayChance: -0.1}},
		{"negative delay duration", SensorConfig{DelayMS: -50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSensor("s", "bad", tt.cfg, nil); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("NewSensor() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestSensorDefaultInterval(t *testing.T) {
	s := newTestSensor(t, SensorConfig{Base: 20})
	if got := s.Interval(); got != time.Second {
		t.Errorf("Interval() = %v, want 1s", got)
	}
}
