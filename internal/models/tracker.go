package models

import "time"

// ControlDebug records what the position controller did on each axis
type ControlDebug struct {
	DiffH       int     `json:"diff_h"`
	DiffV       int     `json:"diff_v"`
	CorrectionH float64 `json:"correction_h"`
	CorrectionV float64 `json:"correction_v"`
	MovedH      bool    `json:"moved_h"`
	MovedV      bool    `json:"moved_v"`
}

// Command is the servo position computed for one reading
type Command struct {
	ServoH int          `json:"servo_h"`
	ServoV int          `json:"servo_v"`
	Debug  ControlDebug `json:"debug"`
}

// Efficiency statuses
const (
	EfficiencyTraining = "TRAINING"
	EfficiencyOK       = "OK"
	EfficiencyLow      = "LOW_EFFICIENCY"
	EfficiencyNoData   = "NO_VOLTAGE"
)

// EfficiencyResult is the output of the panel efficiency model
type EfficiencyResult struct {
	Status           string   `json:"status"`
	VoltageReal      *float64 `json:"voltage_real"`
	VoltagePredicted *float64 `json:"voltage_predicted"`
	Error            *float64 `json:"error"`
}

// AnomalyResult is the output of the anomaly scorer
type AnomalyResult struct {
	Detected  bool    `json:"detected"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}

// DriftResult is the output of the drift monitor
type DriftResult struct {
	Detected        bool `json:"detected"`
	CumulativeCount int  `json:"cumulative_count"`
}

// EnvironmentResult is the output of the environment classifier
type EnvironmentResult struct {
	State          int     `json:"state"`
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	RelLightChange float64 `json:"rel_light_change"`
}

// Analysis is the union of all analytics outputs for one reading
type Analysis struct {
	Efficiency  EfficiencyResult  `json:"efficiency"`
	Anomaly     AnomalyResult     `json:"anomaly"`
	Drift       DriftResult       `json:"drift"`
	Environment EnvironmentResult `json:"environment"`
}

// TrackerResponse is returned to the device for every reading
type TrackerResponse struct {
	DeviceID       string       `json:"device_id"`
	Timestamp      time.Time    `json:"timestamp"`
	ServoH         int          `json:"servo_h"`
	ServoV         int          `json:"servo_v"`
	Debug          ControlDebug `json:"debug"`
	Analysis       Analysis     `json:"analysis"`
	PollIntervalMs int          `json:"poll_interval_ms"`
}

// AnalyzerStats are running counters exposed by the analytics pipeline
type AnalyzerStats struct {
	PredictionsCount   int `json:"predictions_count"`
	AnomaliesDetected  int `json:"anomalies_detected"`
	DriftDetectedCount int `json:"drift_detected_count"`
}
