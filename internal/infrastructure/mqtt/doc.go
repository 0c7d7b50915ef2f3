// Package mqtt provides MQTT broker connectivity for FleetSim Core.
//
// The simulator publishes device readings on per-device telemetry topics
// and a retained status message on the system topic. There is no inbound
// command path over MQTT; commands arrive via the HTTP API.
//
// The initial connection retries with exponential backoff; once connected,
// the paho client's auto-reconnect takes over. A Last Will message lets
// subscribers detect unexpected disconnects.
package mqtt
