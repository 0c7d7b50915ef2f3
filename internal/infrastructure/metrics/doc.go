// Package metrics provides Prometheus instrumentation for FleetSim Core.
//
// Each Metrics instance owns a private registry, so components receive their
// collectors by injection and tests can create isolated instances. The
// registry is exposed over HTTP via Handler, mounted at /metrics by the API
// server.
package metrics
