// Package sim runs the device simulation: one goroutine per device driving
// ticks on a nominal-time schedule, and a Controller that composes the
// registry, scheduler, telemetry hub and repository into the operations the
// API exposes.
//
// # Scheduling
//
// Each device task computes its next deadline by adding the device interval
// to the previous deadline, not to the wall clock. A slow tick therefore
// does not stretch the schedule: the next tick fires immediately and the
// overrun is recorded in the scheduling-lag metrics. Intervals are re-read
// every cycle, so reconfiguring a device takes effect on its next tick.
//
// # Lifecycle
//
// A device task is Stopped, Running, or Stopping. Stop cancels the task's
// context and waits for the goroutine to exit, so when Stop returns no
// further readings from that device can be published. The tick in flight
// during Stop, if any, completes and its reading is delivered.
package sim
