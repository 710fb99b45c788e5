package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"solar-tracker/internal/models"
)

// FeatureNames labels the regression inputs, in models.FeatureVector.Values order
var FeatureNames = [models.NumFeatures]string{
	"avg_light",
	"max_light",
	"min_light",
	"light_variance",
	"servo_h",
	"servo_v",
	"hour",
	"minute",
}

// LinearRegression is a linear model trained by SGD on the squared loss with L2 regularization
type LinearRegression struct {
	weights     []float64
	intercept   float64
	lr          float64
	interceptLR float64
	l2          float64
}

// NewLinearRegression creates a zero-initialized model for n features
func NewLinearRegression(n int, lr, l2 float64) *LinearRegression {
	return &LinearRegression{
		weights:     make([]float64, n),
		lr:          lr,
		interceptLR: lr,
		l2:          l2,
	}
}

// PredictOne returns the model output for x
func (r *LinearRegression) PredictOne(x []float64) float64 {
	if len(x) != len(r.weights) {
		panic("ml: feature vector length does not match regressor")
	}
	return r.intercept + floats.Dot(r.weights, x)
}

// LearnOne takes one gradient step towards y
func (r *LinearRegression) LearnOne(x []float64, y float64) {
	gradient := 2 * (r.PredictOne(x) - y)
	gradient = math.Max(-1e12, math.Min(1e12, gradient))

	for i, xi := range x {
		r.weights[i] -= r.lr * (gradient*xi + r.l2*r.weights[i])
	}
	r.intercept -= r.interceptLR * gradient
}

// Coefficients returns the weights keyed by feature name
func (r *LinearRegression) Coefficients() map[string]float64 {
	coefficients := make(map[string]float64, len(r.weights))
	for i, w := range r.weights {
		name := fmt.Sprintf("x%d", i)
		if i < len(FeatureNames) {
			name = FeatureNames[i]
		}
		coefficients[name] = w
	}
	return coefficients
}

// Intercept returns the bias term
func (r *LinearRegression) Intercept() float64 {
	return r.intercept
}

// EfficiencyConfig configures the panel efficiency model
type EfficiencyConfig struct {
	WarmupSamples  int     // no predictions until more samples than this have been seen
	ErrorThreshold float64 // volts; absolute errors at or above this flag LOW_EFFICIENCY
	LearningRate   float64
	L2             float64
}

// DefaultEfficiencyConfig returns default configuration
func DefaultEfficiencyConfig() EfficiencyConfig {
	return EfficiencyConfig{
		WarmupSamples:  10,
		ErrorThreshold: 0.5,
		LearningRate:   0.01,
		L2:             0.001,
	}
}

// EfficiencyModel predicts expected panel voltage and flags readings below it.
// Not safe for concurrent use.
type EfficiencyModel struct {
	config    EfficiencyConfig
	scaler    Transformer
	regressor Regressor
	seen      int
}

// NewEfficiencyModel creates a standard scaler followed by a linear regression
func NewEfficiencyModel(config EfficiencyConfig) *EfficiencyModel {
	return &EfficiencyModel{
		config:    config,
		scaler:    NewStandardScaler(models.NumFeatures),
		regressor: NewLinearRegression(models.NumFeatures, config.LearningRate, config.L2),
	}
}

// PredictThenLearn predicts the voltage from the current model, then learns the observed value.
// The prediction never sees its own label.
func (m *EfficiencyModel) PredictThenLearn(features models.FeatureVector, voltage float64) models.EfficiencyResult {
	values := features.Values()
	x := values[:]

	observed := voltage
	result := models.EfficiencyResult{
		Status:      models.EfficiencyTraining,
		VoltageReal: &observed,
	}

	if m.seen > m.config.WarmupSamples {
		predicted := m.regressor.PredictOne(m.scaler.TransformOne(x))
		errAbs := math.Abs(voltage - predicted)

		result.VoltagePredicted = &predicted
		result.Error = &errAbs
		if errAbs < m.config.ErrorThreshold {
			result.Status = models.EfficiencyOK
		} else {
			result.Status = models.EfficiencyLow
		}
	}

	m.scaler.LearnOne(x)
	m.regressor.LearnOne(m.scaler.TransformOne(x), voltage)
	m.seen++

	return result
}

// Seen returns the number of labelled samples learned so far
func (m *EfficiencyModel) Seen() int {
	return m.seen
}
