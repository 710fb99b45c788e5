package database

// SQL schemas for all ClickHouse tables

const (
	// TrackerSamplesTableSQL creates the tracker_samples table: one row per processed reading
	// with raw sensor values, derived features, the commanded position and analytics results
	TrackerSamplesTableSQL = `
		CREATE TABLE IF NOT EXISTS tracker_samples (
			sample_id UUID,
			timestamp DateTime64(3),
			device_id String,
			ldr_tl UInt32,
			ldr_tr UInt32,
			ldr_bl UInt32,
			ldr_br UInt32,
			servo_h Int32,
			servo_v Int32,
			limit_h Bool,
			limit_v Bool,
			voltage Nullable(Float64),
			temperature Nullable(Float64),
			pressure Nullable(Float64),
			humidity Nullable(Float64),
			altitude Nullable(Float64),
			avg_light Float64,
			max_light Float64,
			min_light Float64,
			light_variance Float64,
			cmd_servo_h Int32,
			cmd_servo_v Int32,
			diff_h Int32,
			diff_v Int32,
			correction_h Float64,
			correction_v Float64,
			moved_h Bool,
			moved_v Bool,
			poll_interval_ms UInt32,
			efficiency_status LowCardinality(String),
			voltage_predicted Nullable(Float64),
			voltage_error Nullable(Float64),
			anomaly_score Float64,
			anomaly_detected Bool,
			drift_detected Bool,
			drift_count UInt32,
			environment_state UInt8,
			environment_confidence Float64,
			rel_light_change Float64
		) ENGINE = MergeTree()
		ORDER BY (device_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// DeviceRegistryTableSQL creates the device_registry table
	DeviceRegistryTableSQL = `
		CREATE TABLE IF NOT EXISTS device_registry (
			device_id String,
			name String,
			location String,
			registered_at DateTime64(3),
			last_seen DateTime64(3),
			is_active Bool,
			config String
		) ENGINE = ReplacingMergeTree(last_seen)
		ORDER BY device_id
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		TrackerSamplesTableSQL,
		DeviceRegistryTableSQL,
	}
}
