package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"solar-tracker/internal/models"
)

func reading(tl, tr, bl, br int) *models.Reading {
	return &models.Reading{
		DeviceID:       "tracker-01",
		Timestamp:      time.Date(2024, 6, 21, 14, 35, 10, 0, time.UTC),
		LDRTopLeft:     tl,
		LDRTopRight:    tr,
		LDRBottomLeft:  bl,
		LDRBottomRight: br,
		ServoH:         75,
		ServoV:         120,
	}
}

func TestExtractFeatures(t *testing.T) {
	f := ExtractFeatures(reading(100, 200, 300, 400))

	assert.InDelta(t, 250.0, f.AvgLight, 1e-9)
	assert.InDelta(t, 400.0, f.MaxLight, 1e-9)
	assert.InDelta(t, 100.0, f.MinLight, 1e-9)
	// population variance: (150^2 + 50^2 + 50^2 + 150^2) / 4
	assert.InDelta(t, 12500.0, f.LightVariance, 1e-9)
	assert.Equal(t, 75.0, f.ServoH)
	assert.Equal(t, 120.0, f.ServoV)
	assert.Equal(t, 14.0, f.Hour)
	assert.Equal(t, 35.0, f.Minute)
}

func TestExtractFeaturesUniformLight(t *testing.T) {
	f := ExtractFeatures(reading(500, 500, 500, 500))

	assert.InDelta(t, 500.0, f.AvgLight, 1e-9)
	assert.InDelta(t, 0.0, f.LightVariance, 1e-9)
	assert.Equal(t, f.MaxLight, f.MinLight)
}

func TestExtractFeaturesOrderIndependent(t *testing.T) {
	base := ExtractFeatures(reading(17, 2048, 911, 4095))

	perms := [][4]int{
		{2048, 17, 911, 4095},
		{4095, 911, 2048, 17},
		{911, 4095, 17, 2048},
		{17, 911, 4095, 2048},
	}
	for _, p := range perms {
		f := ExtractFeatures(reading(p[0], p[1], p[2], p[3]))
		assert.InDelta(t, base.AvgLight, f.AvgLight, 1e-9)
		assert.InDelta(t, base.LightVariance, f.LightVariance, 1e-6)
		assert.Equal(t, base.MaxLight, f.MaxLight)
		assert.Equal(t, base.MinLight, f.MinLight)
	}

	again := ExtractFeatures(reading(17, 2048, 911, 4095))
	assert.Equal(t, base, again)
}
