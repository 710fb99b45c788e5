package ml

// Regressor is an incremental regression model
type Regressor interface {
	PredictOne(x []float64) float64
	LearnOne(x []float64, y float64)
}

// Transformer is an incremental, unsupervised feature transform
type Transformer interface {
	LearnOne(x []float64)
	TransformOne(x []float64) []float64
}

// Scorer is a streaming anomaly scorer; scores are in [0, 1]
type Scorer interface {
	ScoreOne(x []float64) float64
	LearnOne(x []float64)
}

// DriftDetector watches a scalar stream and reports distribution changes
type DriftDetector interface {
	Update(x float64) bool
}
