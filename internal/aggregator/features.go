package aggregator

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"solar-tracker/internal/models"
)

// ExtractFeatures derives the scalar features of a reading.
// Average and variance are symmetric in the four sensors; variance is the
// population variance (divisor 4).
// Hour and minute come from the reading timestamp in its own location.
func ExtractFeatures(reading *models.Reading) models.FeatureVector {
	light := lightValues(reading)
	avg, variance := stat.PopMeanVariance(light, nil)

	return models.FeatureVector{
		AvgLight:      avg,
		MaxLight:      floats.Max(light),
		MinLight:      floats.Min(light),
		LightVariance: variance,
		ServoH:        float64(reading.ServoH),
		ServoV:        float64(reading.ServoV),
		Hour:          float64(reading.Timestamp.Hour()),
		Minute:        float64(reading.Timestamp.Minute()),
	}
}

// lightValues converts the four LDR intensities to float64
func lightValues(reading *models.Reading) []float64 {
	ldrs := reading.LDRs()
	values := make([]float64, len(ldrs))
	for i, v := range ldrs {
		values[i] = float64(v)
	}
	return values
}
