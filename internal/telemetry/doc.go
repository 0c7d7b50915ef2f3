// Package telemetry provides the fan-out hub that carries device readings
// from the simulation to consumers.
//
// The Hub has two delivery paths with different guarantees:
//
//   - Subscribers (WebSocket clients, tests) each get a bounded buffered
//     channel. A slow subscriber never blocks the simulation: when its
//     buffer is full the oldest reading is dropped and a per-subscriber
//     drop counter incremented. Readings that are delivered arrive in
//     publish order.
//
//   - Sinks (SQLite history, MQTT, InfluxDB) are fed from a single bounded
//     queue drained by a forwarder goroutine. Sink failures are logged and
//     counted, never propagated back to the device simulation.
//
// Publish never blocks and never returns an error. Degraded-mode conditions
// surface as Prometheus counters and log lines.
package telemetry
