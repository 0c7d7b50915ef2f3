package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
fleet:
  id: "test-fleet"
  name: "Test Fleet"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 9090
telemetry:
  subscriber_buffer: 64
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fleet.ID != "test-fleet" {
		t.Errorf("Fleet.ID = %q, want %q", cfg.Fleet.ID, "test-fleet")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Telemetry.SubscriberBuffer != 64 {
		t.Errorf("Telemetry.SubscriberBuffer = %d, want 64", cfg.Telemetry.SubscriberBuffer)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, `fleet: {id: "f1"}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telemetry.SubscriberBuffer != 256 {
		t.Errorf("default SubscriberBuffer = %d, want 256", cfg.Telemetry.SubscriberBuffer)
	}
	if cfg.Simulation.LagThresholdMS != 100 {
		t.Errorf("default LagThresholdMS = %d, want 100", cfg.Simulation.LagThresholdMS)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
fleet:
  id: ""
api:
  port: 99999
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "fleet.id") {
		t.Errorf("error %q should mention fleet.id", err)
	}
	if !strings.Contains(err.Error(), "api.port") {
		t.Errorf("error %q should mention api.port", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLEETSIM_DATABASE_PATH", "/override/fleet.db")
	t.Setenv("FLEETSIM_API_PORT", "7070")

	cfg, err := Load(writeConfig(t, `fleet: {id: "f1"}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/override/fleet.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 7070 {
		t.Errorf("API.Port = %d, want 7070", cfg.API.Port)
	}
}

func TestLoad_RejectsZeroWebSocketTimings(t *testing.T) {
	content := `
fleet:
  id: "f1"
websocket:
  ping_interval: 0
  pong_timeout: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for zero ws timings, got nil")
	}
	if !strings.Contains(err.Error(), "websocket.ping_interval") {
		t.Errorf("error %q should mention websocket.ping_interval", err)
	}
	if !strings.Contains(err.Error(), "websocket.pong_timeout") {
		t.Errorf("error %q should mention websocket.pong_timeout", err)
	}
}

func TestValidate_InfluxRequiresURLAndToken(t *testing.T) {
	cfg := defaultConfig()
	cfg.InfluxDB.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for enabled influxdb without url/token")
	}
	if !strings.Contains(err.Error(), "influxdb.url") {
		t.Errorf("error %q should mention influxdb.url", err)
	}
}

func TestTimeoutGetters(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %vs, want 30s", got)
	}
	if got := cfg.LagThreshold().Milliseconds(); got != 100 {
		t.Errorf("LagThreshold() = %vms, want 100ms", got)
	}
}
