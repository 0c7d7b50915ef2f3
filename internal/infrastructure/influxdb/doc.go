// Package influxdb provides time-series storage for device readings.
//
// The client wraps the official InfluxDB v2 Go client with connection
// management, batched non-blocking writes and health checks. It is optional:
// when disabled in config, Connect returns ErrDisabled and the telemetry hub
// simply runs without the InfluxDB sink.
package influxdb
