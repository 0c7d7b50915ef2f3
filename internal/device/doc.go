// Package device provides the simulated device model and the Device Registry
// for FleetSim Core.
//
// A Device is a pure state machine: given the current runtime state and an
// externally supplied clock (and, for sensors, an injected entropy source),
// Tick produces exactly one immutable Reading and Apply/Configure perform
// validated state transitions. Devices carry no locking of their own — the
// Registry owns a per-device serialization token that the simulation
// scheduler and the command path share, so a tick and a command for the same
// device never mutate state simultaneously.
//
// # Key Types
//
//   - Device: the fixed capability set {Tick, Apply, Configure, Summary}
//   - Switch: on/off actuator; the passive variant toggles itself each tick
//   - Sensor: base value + random walk noise + linear drift accumulator
//   - Reading: immutable {device, seq, timestamp, value, unit} sample
//   - Registry: authoritative table of live devices keyed by ID
//   - Repository: persistence boundary (device configs + reading history)
//
// # Usage
//
//	reg := device.NewRegistry()
//	dev, err := device.New(device.GenerateID(), device.CreateSpec{
//	    Name: "Boiler Temp",
//	    Kind: device.KindSensor,
//	    Sensor: &device.SensorConfig{Base: 20, Amplitude: 0.5, IntervalMS: 1000, Unit: "celsius"},
//	})
//	if err != nil {
//	    return err
//	}
//	reg.Add(dev)
//
//	// Tick and command paths both go through the registry token:
//	reg.WithDevice(dev.ID(), func(d device.Device) error {
//	    r := d.Tick(time.Now())
//	    _ = r
//	    return nil
//	})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Devices themselves are NOT: all
// access must go through Registry.WithDevice.
package device
