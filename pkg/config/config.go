package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr string

	// MQTT Configuration
	MQTTEnabled  bool
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Topics: readings are subscribed with a wildcard, commands use a {device_id} placeholder
	MQTTTopicReadings string
	MQTTTopicCommands string

	// ClickHouse Configuration
	StorageEnabled bool
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// Default axis travel, overridden per device by calibration profiles
	AxisHMin int
	AxisHMax int
	AxisVMin int
	AxisVMax int

	// Poll intervals suggested to devices
	PollFastMs   int
	PollNormalMs int

	// Analytics thresholds
	AnomalyThreshold    float64
	EfficiencyThreshold float64

	CalibrationDir string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":5000"),

		MQTTEnabled:  getEnvBool("MQTT_ENABLED", false),
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "solar-tracker"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		MQTTTopicReadings: getEnv("MQTT_TOPIC_READINGS", "tracker/+/readings"),
		MQTTTopicCommands: getEnv("MQTT_TOPIC_COMMANDS", "tracker/{device_id}/command"),

		StorageEnabled: getEnvBool("STORAGE_ENABLED", false),
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "solar"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		AxisHMin: getEnvInt("AXIS_H_MIN", 0),
		AxisHMax: getEnvInt("AXIS_H_MAX", 180),
		AxisVMin: getEnvInt("AXIS_V_MIN", 0),
		AxisVMax: getEnvInt("AXIS_V_MAX", 180),

		PollFastMs:   getEnvInt("POLL_FAST_MS", 500),
		PollNormalMs: getEnvInt("POLL_NORMAL_MS", 2000),

		AnomalyThreshold:    getEnvFloat("ANOMALY_THRESHOLD", 0.7),
		EfficiencyThreshold: getEnvFloat("EFFICIENCY_ERROR_THRESHOLD", 0.5),

		CalibrationDir: getEnv("CALIBRATION_DIR", "."),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return floatValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}
