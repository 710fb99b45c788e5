package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-tracker/internal/models"
)

func telemetry(avg, variance, servoH, servoV float64) models.FeatureVector {
	return models.FeatureVector{AvgLight: avg, LightVariance: variance, ServoH: servoH, ServoV: servoV}
}

func TestHalfSpaceTreesFirstWindowScoresZero(t *testing.T) {
	hst := NewHalfSpaceTrees(DefaultHSTConfig())
	for i := 0; i < 249; i++ {
		assert.Zero(t, hst.ScoreOne([]float64{100, 0, 10, 10}))
		hst.LearnOne([]float64{100, 0, 10, 10})
	}
}

func TestAnomalyScorerFlagsOutlier(t *testing.T) {
	config := DefaultHSTConfig()
	scorer := NewAnomalyScorer(NewHalfSpaceTrees(config), config.Threshold)

	normal := telemetry(100, 0, 10, 10)
	for i := 0; i < config.WindowSize; i++ {
		res := scorer.ScoreThenLearn(normal)
		assert.False(t, res.Detected)
	}

	res := scorer.ScoreThenLearn(normal)
	assert.InDelta(t, 0.0, res.Score, 1e-9)
	assert.False(t, res.Detected)

	res = scorer.ScoreThenLearn(telemetry(4000, 4e6, 170, 170))
	assert.Greater(t, res.Score, 0.9)
	assert.True(t, res.Detected)
	assert.Equal(t, 0.7, res.Threshold)
}

func TestAnomalyScoreBoundsAndThreshold(t *testing.T) {
	config := DefaultHSTConfig()
	scorer := NewAnomalyScorer(NewHalfSpaceTrees(config), config.Threshold)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		f := telemetry(
			rng.Float64()*4095,
			rng.Float64()*4e6,
			float64(rng.Intn(181)),
			float64(rng.Intn(181)),
		)
		// occasional values beyond the configured ranges
		if i%97 == 0 {
			f.AvgLight = 9000
			f.ServoV = -20
		}
		res := scorer.ScoreThenLearn(f)
		require.GreaterOrEqual(t, res.Score, 0.0)
		require.LessOrEqual(t, res.Score, 1.0)
		require.Equal(t, res.Score > 0.7, res.Detected)
	}
}

func TestHalfSpaceTreesDeterministic(t *testing.T) {
	a := NewHalfSpaceTrees(DefaultHSTConfig())
	b := NewHalfSpaceTrees(DefaultHSTConfig())
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 800; i++ {
		x := []float64{rng.Float64() * 4095, rng.Float64() * 1e6, rng.Float64() * 180, rng.Float64() * 180}
		require.Equal(t, a.ScoreOne(x), b.ScoreOne(x))
		a.LearnOne(x)
		b.LearnOne(x)
	}
}
