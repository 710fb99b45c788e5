package ml

import (
	"log"
	"sync"

	"solar-tracker/internal/models"
)

// AnalyzerConfig holds the configuration of every analytics stage
type AnalyzerConfig struct {
	Efficiency EfficiencyConfig
	Anomaly    HSTConfig
	Drift      ADWINConfig
}

// DefaultAnalyzerConfig returns default configuration
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Efficiency: DefaultEfficiencyConfig(),
		Anomaly:    DefaultHSTConfig(),
		Drift:      DefaultADWINConfig(),
	}
}

// Analyzer owns all analytics model state and runs the per-sample pipeline:
// efficiency -> anomaly -> drift -> environment.
// The learning models are shared by every device; mu serializes their updates.
type Analyzer struct {
	mu          sync.Mutex
	efficiency  *EfficiencyModel
	anomaly     *AnomalyScorer
	drift       *DriftMonitor
	environment *EnvironmentClassifier
	anomalies   int
}

// NewAnalyzer builds the analytics models from config
func NewAnalyzer(config AnalyzerConfig) *Analyzer {
	return &Analyzer{
		efficiency:  NewEfficiencyModel(config.Efficiency),
		anomaly:     NewAnomalyScorer(NewHalfSpaceTrees(config.Anomaly), config.Anomaly.Threshold),
		drift:       NewDriftMonitor(NewADWIN(config.Drift)),
		environment: NewEnvironmentClassifier(),
	}
}

// Analyze runs every stage on one reading and its features
func (a *Analyzer) Analyze(reading *models.Reading, features models.FeatureVector) models.Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()

	var analysis models.Analysis

	if reading.Voltage != nil {
		analysis.Efficiency = a.efficiency.PredictThenLearn(features, *reading.Voltage)
	} else {
		analysis.Efficiency = models.EfficiencyResult{Status: models.EfficiencyNoData}
	}

	analysis.Anomaly = a.anomaly.ScoreThenLearn(features)
	if analysis.Anomaly.Detected {
		a.anomalies++
		log.Printf("Analyzer: Anomaly for %s (score=%.3f, avg_light=%.1f, variance=%.1f)",
			reading.DeviceID, analysis.Anomaly.Score, features.AvgLight, features.LightVariance)
	}

	analysis.Drift = a.drift.Update(features.LightVariance)
	if analysis.Drift.Detected {
		log.Printf("Analyzer: Concept drift detected on light variance (device=%s, total=%d)",
			reading.DeviceID, analysis.Drift.CumulativeCount)
	}

	analysis.Environment = a.environment.Classify(reading.DeviceID, features.AvgLight, reading.Humidity)

	return analysis
}

// Stats returns the running counters
func (a *Analyzer) Stats() models.AnalyzerStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return models.AnalyzerStats{
		PredictionsCount:   a.efficiency.Seen(),
		AnomaliesDetected:  a.anomalies,
		DriftDetectedCount: a.drift.Count(),
	}
}
