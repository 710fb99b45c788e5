package ml

import "math"

// StandardScaler z-normalizes features with running means and variances (Welford)
type StandardScaler struct {
	counts []float64
	means  []float64
	vars   []float64
}

// NewStandardScaler creates a scaler for n features
func NewStandardScaler(n int) *StandardScaler {
	return &StandardScaler{
		counts: make([]float64, n),
		means:  make([]float64, n),
		vars:   make([]float64, n),
	}
}

// LearnOne updates the running statistics with one sample
func (s *StandardScaler) LearnOne(x []float64) {
	s.checkLen(x)
	for i, xi := range x {
		s.counts[i]++
		oldMean := s.means[i]
		s.means[i] += (xi - oldMean) / s.counts[i]
		s.vars[i] += ((xi-oldMean)*(xi-s.means[i]) - s.vars[i]) / s.counts[i]
	}
}

// TransformOne returns the standardized sample; features with zero variance map to 0
func (s *StandardScaler) TransformOne(x []float64) []float64 {
	s.checkLen(x)
	out := make([]float64, len(x))
	for i, xi := range x {
		if s.vars[i] > 0 {
			out[i] = (xi - s.means[i]) / math.Sqrt(s.vars[i])
		}
	}
	return out
}

// Mean returns the running mean of feature i
func (s *StandardScaler) Mean(i int) float64 {
	return s.means[i]
}

// Variance returns the running population variance of feature i
func (s *StandardScaler) Variance(i int) float64 {
	return s.vars[i]
}

func (s *StandardScaler) checkLen(x []float64) {
	if len(x) != len(s.means) {
		panic("ml: feature vector length does not match scaler")
	}
}
