package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestADWINStableStream(t *testing.T) {
	a := NewADWIN(DefaultADWINConfig())
	for i := 0; i < 500; i++ {
		require.False(t, a.Update(42), "sample %d", i)
	}
	assert.Equal(t, 500, a.Width())
	assert.InDelta(t, 42.0, a.Mean(), 1e-9)
}

func TestADWINDetectsLevelShift(t *testing.T) {
	a := NewADWIN(DefaultADWINConfig())
	for i := 0; i < 200; i++ {
		a.Update(0)
	}

	detected := false
	shifted := 0
	for shifted < 100 && !detected {
		detected = a.Update(1000)
		shifted++
	}
	require.True(t, detected)

	// the older sub-window was dropped, so the mean moved towards the new level
	seen := 200 + shifted
	assert.Less(t, a.Width(), seen)
	assert.Greater(t, a.Mean(), 1000*float64(shifted)/float64(seen))
}

func TestADWINGracePeriod(t *testing.T) {
	a := NewADWIN(DefaultADWINConfig())
	values := []float64{0, 0, 0, 0, 0, 1e6, 1e6, 1e6, 1e6, 1e6}
	for _, v := range values {
		assert.False(t, a.Update(v))
	}
}

func TestDriftMonitorCountMonotone(t *testing.T) {
	m := NewDriftMonitor(NewADWIN(DefaultADWINConfig()))
	rng := rand.New(rand.NewSource(11))

	prev := 0
	level := 0.0
	for i := 0; i < 3000; i++ {
		if i%400 == 0 {
			level = rng.Float64() * 1e5
		}
		res := m.Update(level + rng.NormFloat64()*100)
		require.GreaterOrEqual(t, res.CumulativeCount, prev)
		if res.Detected {
			require.Equal(t, prev+1, res.CumulativeCount)
		} else {
			require.Equal(t, prev, res.CumulativeCount)
		}
		prev = res.CumulativeCount
	}
	assert.Equal(t, prev, m.Count())
	assert.Greater(t, m.Count(), 0)
}
