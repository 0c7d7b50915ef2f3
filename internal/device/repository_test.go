package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE devices (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			kind       TEXT NOT NULL,
			config     TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE readings (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			kind      TEXT NOT NULL,
			seq       INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			value     REAL NOT NULL,
			unit      TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX idx_readings_device ON readings(device_id, seq);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestSQLiteRepositoryDeviceConfigRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	sensor, err := NewSensor("sensor-1", "Boiler Temp", SensorConfig{
		Base: 20, Amplitude: 0.5, Unit: "celsius", IntervalMS: 500,
	}, nil)
	if err != nil {
		t.Fatalf("NewSensor() error = %v", err)
	}

	rec, err := ToRecord(sensor)
	if err != nil {
		t.Fatalf("ToRecord() error = %v", err)
	}
	if err := repo.SaveDeviceConfig(ctx, rec); err != nil {
		t.Fatalf("SaveDeviceConfig() error = %v", err)
	}

	records, err := repo.LoadAllDeviceConfigs(ctx)
	if err != nil {
		t.Fatalf("LoadAllDeviceConfigs() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("loaded %d records, want 1", len(records))
	}

	dev, err := FromRecord(records[0])
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}
	if dev.Name() != "Boiler Temp" || dev.Kind() != KindSensor {
		t.Errorf("restored device = %s/%s, want Boiler Temp/sensor", dev.Name(), dev.Kind())
	}
	if dev.Interval() != 500*time.Millisecond {
		t.Errorf("restored Interval() = %v, want 500ms", dev.Interval())
	}
}

func TestSQLiteRepositorySaveUpserts(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	rec := Record{
		ID: "sw-1", Name: "Hall Light", Kind: KindSwitch,
		Config: json.RawMessage(`{"default_on":false}`),
	}
	if err := repo.SaveDeviceConfig(ctx, rec); err != nil {
		t.Fatalf("SaveDeviceConfig() error = %v", err)
	}

	rec.Name = "Porch Light"
	if err := repo.SaveDeviceConfig(ctx, rec); err != nil {
		t.Fatalf("second SaveDeviceConfig() error = %v", err)
	}

	records, err := repo.LoadAllDeviceConfigs(ctx)
	if err != nil {
		t.Fatalf("LoadAllDeviceConfigs() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("loaded %d records, want 1", len(records))
	}
	if records[0].Name != "Porch Light" {
		t.Errorf("Name = %q, want Porch Light", records[0].Name)
	}
}

func TestSQLiteRepositoryDeleteDeviceConfig(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.DeleteDeviceConfig(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteDeviceConfig(missing) error = %v, want ErrNotFound", err)
	}

	rec := Record{
		ID: "sw-1", Name: "Hall Light", Kind: KindSwitch,
		Config: json.RawMessage(`{}`),
	}
	if err := repo.SaveDeviceConfig(ctx, rec); err != nil {
		t.Fatalf("SaveDeviceConfig() error = %v", err)
	}
	if err := repo.DeleteDeviceConfig(ctx, "sw-1"); err != nil {
		t.Fatalf("DeleteDeviceConfig() error = %v", err)
	}

	records, err := repo.LoadAllDeviceConfigs(ctx)
	if err != nil {
		t.Fatalf("LoadAllDeviceConfigs() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("loaded %d records after delete, want 0", len(records))
	}
}

func TestSQLiteRepositoryReadings(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		err := repo.AppendReading(ctx, Reading{
			DeviceID:  "sensor-1",
			Kind:      KindSensor,
			Seq:       uint64(i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Value:     float64(20 + i),
			Unit:      "celsius",
		})
		if err != nil {
			t.Fatalf("AppendReading(%d) error = %v", i, err)
		}
	}

	readings, err := repo.ListReadings(ctx, "sensor-1", 3)
	if err != nil {
		t.Fatalf("ListReadings() error = %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("got %d readings, want 3", len(readings))
	}
	// Newest first.
	for i, wantSeq := range []uint64{5, 4, 3} {
		if readings[i].Seq != wantSeq {
			t.Errorf("readings[%d].Seq = %d, want %d", i, readings[i].Seq, wantSeq)
		}
	}
	if readings[0].Value != 25.0 {
		t.Errorf("readings[0].Value = %v, want 25", readings[0].Value)
	}
	if readings[0].Unit != "celsius" {
		t.Errorf("readings[0].Unit = %q, want celsius", readings[0].Unit)
	}
}

func TestSQLiteRepositorySwitchReadingValueReconstruction(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, on := range []bool{true, false} {
		err := repo.AppendReading(ctx, Reading{
			DeviceID: "sw-1", Kind: KindSwitch,
			Seq: uint64(i + 1), Timestamp: now, Value: on,
		})
		if err != nil {
			t.Fatalf("AppendReading() error = %v", err)
		}
	}

	readings, err := repo.ListReadings(ctx, "sw-1", 10)
	if err != nil {
		t.Fatalf("ListReadings() error = %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings[0].Value != false || readings[1].Value != true {
		t.Errorf("reconstructed values = %v, %v; want false, true", readings[0].Value, readings[1].Value)
	}
}
