package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record is the persisted form of a device: identity plus the variant
// config, without runtime state. Runtime state (switch position, drift
// accumulator) is deliberately not durable; restored devices restart from
// their configured defaults.
type Record struct {
	ID        string
	Name      string
	Kind      Kind
	Config    json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines the persistence boundary for device configs and
// reading history. This abstraction allows for different implementations
// (SQLite, mock, etc.) and enables unit testing without database
// dependencies.
type Repository interface {
	// SaveDeviceConfig upserts a device record.
	SaveDeviceConfig(ctx context.Context, rec Record) error

	// LoadAllDeviceConfigs returns every persisted device record, used to
	// repopulate the registry at startup.
	LoadAllDeviceConfigs(ctx context.Context) ([]Record, error)

	// DeleteDeviceConfig removes a device record.
	// Returns ErrNotFound if no record exists for the ID.
	DeleteDeviceConfig(ctx context.Context, id string) error

	// AppendReading stores one reading in the history table.
	AppendReading(ctx context.Context, r Reading) error

	// ListReadings returns the most recent readings for a device, newest
	// first, up to limit.
	ListReadings(ctx context.Context, deviceID string, limit int) ([]Reading, error)
}

// ToRecord converts a live device into its persisted form.
func ToRecord(dev Device) (Record, error) {
	sum := dev.Summary()
	cfg, err := json.Marshal(sum.Config)
	if err != nil {
		return Record{}, fmt.Errorf("marshal config for %s: %w", sum.ID, err)
	}
	return Record{
		ID:     sum.ID,
		Name:   sum.Name,
		Kind:   sum.Kind,
		Config: cfg,
	}, nil
}

// FromRecord rehydrates a device from its persisted form. The device starts
// from its configured defaults; runtime state is not restored.
func FromRecord(rec Record) (Device, error) {
	switch rec.Kind {
	case KindSwitch:
		var cfg SwitchConfig
		if err := json.Unmarshal(rec.Config, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal switch config for %s: %w", rec.ID, err)
		}
		return NewSwitch(rec.ID, rec.Name, cfg)
	case KindSensor:
		var cfg SensorConfig
		if err := json.Unmarshal(rec.Config, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal sensor config for %s: %w", rec.ID, err)
		}
		return NewSensor(rec.ID, rec.Name, cfg, nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, rec.Kind)
	}
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveDeviceConfig upserts a device record.
func (r *SQLiteRepository) SaveDeviceConfig(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO devices (id, name, kind, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'), strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			config = excluded.config,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.Name, string(rec.Kind), string(rec.Config))
	if err != nil {
		return fmt.Errorf("save device config %s: %w", rec.ID, err)
	}
	return nil
}

// LoadAllDeviceConfigs returns every persisted device record.
func (r *SQLiteRepository) LoadAllDeviceConfigs(ctx context.Context) ([]Record, error) {
	query := `
		SELECT id, name, kind, config, created_at, updated_at
		FROM devices
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load device configs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			kind      string
			config    string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &kind, &config, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan device record: %w", err)
		}
		rec.Kind = Kind(kind)
		rec.Config = json.RawMessage(config)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device records: %w", err)
	}
	return records, nil
}

// DeleteDeviceConfig removes a device record.
func (r *SQLiteRepository) DeleteDeviceConfig(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete device config %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete device config %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendReading stores one reading in the history table. The value is
// stored as a float; switch readings store 1/0 and are reconstructed as
// booleans on the way out using the kind column.
func (r *SQLiteRepository) AppendReading(ctx context.Context, reading Reading) error {
	query := `
		INSERT INTO readings (device_id, kind, seq, timestamp, value, unit)
		VALUES (?, ?, ?, ?, ?, ?)`

	value, err := numericValue(reading.Value)
	if err != nil {
		return fmt.Errorf("append reading for %s: %w", reading.DeviceID, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		reading.DeviceID, string(reading.Kind), reading.Seq,
		reading.Timestamp.UTC().Format(time.RFC3339Nano), value, reading.Unit)
	if err != nil {
		return fmt.Errorf("append reading for %s: %w", reading.DeviceID, err)
	}
	return nil
}

// ListReadings returns the most recent readings for a device, newest first.
func (r *SQLiteRepository) ListReadings(ctx context.Context, deviceID string, limit int) ([]Reading, error) {
	if limit < 1 {
		limit = 100
	}

	query := `
		SELECT device_id, kind, seq, timestamp, value, unit
		FROM readings
		WHERE device_id = ?
		ORDER BY seq DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var (
			reading   Reading
			kind      string
			timestamp string
			value     float64
		)
		if err := rows.Scan(&reading.DeviceID, &kind, &reading.Seq, &timestamp, &value, &reading.Unit); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		reading.Kind = Kind(kind)
		reading.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse reading timestamp: %w", err)
		}
		if reading.Kind == KindSwitch {
			reading.Value = value != 0
		} else {
			reading.Value = value
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return readings, nil
}

func numericValue(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.New("unsupported reading value type")
	}
}
