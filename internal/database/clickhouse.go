package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"solar-tracker/internal/models"
)

type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Printf("Connected to ClickHouse at %s", addr)

	db := &ClickHouseDB{conn: conn}

	if err := db.InitSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// insertSampleSQL writes one row of tracker_samples
const insertSampleSQL = `
	INSERT INTO tracker_samples (
		sample_id, timestamp, device_id,
		ldr_tl, ldr_tr, ldr_bl, ldr_br, servo_h, servo_v, limit_h, limit_v,
		voltage, temperature, pressure, humidity, altitude,
		avg_light, max_light, min_light, light_variance,
		cmd_servo_h, cmd_servo_v, diff_h, diff_v, correction_h, correction_v, moved_h, moved_v,
		poll_interval_ms, efficiency_status, voltage_predicted, voltage_error,
		anomaly_score, anomaly_detected, drift_detected, drift_count,
		environment_state, environment_confidence, rel_light_change
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// SaveSample stores one processed reading
func (db *ClickHouseDB) SaveSample(ctx context.Context, sample *models.Sample) error {
	sampleID, err := uuid.Parse(sample.ID)
	if err != nil {
		return fmt.Errorf("invalid sample id %q: %w", sample.ID, err)
	}

	r := sample.Reading
	f := sample.Features
	resp := sample.Response
	a := resp.Analysis

	err = db.conn.Exec(ctx, insertSampleSQL,
		sampleID,
		r.Timestamp,
		r.DeviceID,
		uint32(r.LDRTopLeft),
		uint32(r.LDRTopRight),
		uint32(r.LDRBottomLeft),
		uint32(r.LDRBottomRight),
		int32(r.ServoH),
		int32(r.ServoV),
		r.AtLimitH,
		r.AtLimitV,
		r.Voltage,
		r.Temperature,
		r.Pressure,
		r.Humidity,
		r.Altitude,
		f.AvgLight,
		f.MaxLight,
		f.MinLight,
		f.LightVariance,
		int32(resp.ServoH),
		int32(resp.ServoV),
		int32(resp.Debug.DiffH),
		int32(resp.Debug.DiffV),
		resp.Debug.CorrectionH,
		resp.Debug.CorrectionV,
		resp.Debug.MovedH,
		resp.Debug.MovedV,
		uint32(resp.PollIntervalMs),
		a.Efficiency.Status,
		a.Efficiency.VoltagePredicted,
		a.Efficiency.Error,
		a.Anomaly.Score,
		a.Anomaly.Detected,
		a.Drift.Detected,
		uint32(a.Drift.CumulativeCount),
		uint8(a.Environment.State),
		a.Environment.Confidence,
		a.Environment.RelLightChange,
	)

	if err != nil {
		return fmt.Errorf("failed to insert tracker sample: %w", err)
	}

	return nil
}

// UpsertDevice inserts or updates a device in the registry
func (db *ClickHouseDB) UpsertDevice(ctx context.Context, device *models.Device) error {
	configJSON := "{}"
	if device.Config != nil {
		data, err := json.Marshal(device.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal device config: %w", err)
		}
		configJSON = string(data)
	}

	query := `
		INSERT INTO device_registry (device_id, name, location, registered_at, last_seen, is_active, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		device.DeviceID,
		device.Name,
		device.Location,
		device.RegisteredAt,
		device.LastSeen,
		device.IsActive,
		configJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	return nil
}

// SampleSummary is a compact view of a stored sample
type SampleSummary struct {
	Timestamp        time.Time `json:"timestamp"`
	AvgLight         float64   `json:"avg_light"`
	CmdServoH        int32     `json:"servo_h"`
	CmdServoV        int32     `json:"servo_v"`
	EfficiencyStatus string    `json:"efficiency_status"`
	AnomalyScore     float64   `json:"anomaly_score"`
	EnvironmentState uint8     `json:"environment_state"`
}

// GetRecentSamples returns the latest samples of a device, newest first
func (db *ClickHouseDB) GetRecentSamples(ctx context.Context, deviceID string, limit int) ([]SampleSummary, error) {
	query := `
		SELECT timestamp, avg_light, cmd_servo_h, cmd_servo_v, efficiency_status, anomaly_score, environment_state
		FROM tracker_samples
		WHERE device_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := db.conn.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent samples: %w", err)
	}
	defer rows.Close()

	var samples []SampleSummary
	for rows.Next() {
		var s SampleSummary
		if err := rows.Scan(&s.Timestamp, &s.AvgLight, &s.CmdServoH, &s.CmdServoV,
			&s.EfficiencyStatus, &s.AnomalyScore, &s.EnvironmentState); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}

	return samples, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		log.Println("ClickHouse connection closed")
	}
	return nil
}
