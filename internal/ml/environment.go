package ml

import (
	"math"
	"sync"

	"solar-tracker/internal/models"
)

// EnvironmentState is the sky condition inferred from the light level
type EnvironmentState int

const (
	Sunny EnvironmentState = iota
	Cloudy
	Unstable
	HumidHazy
)

func (s EnvironmentState) String() string {
	switch s {
	case Sunny:
		return "SUNNY"
	case Cloudy:
		return "CLOUDY"
	case Unstable:
		return "UNSTABLE"
	case HumidHazy:
		return "HUMID_HAZY"
	default:
		return "UNKNOWN"
	}
}

// Classifier thresholds
const (
	LightHistorySize  = 30
	minNormSamples    = 10
	unstableRelChange = 0.08
	unstableFullScale = 0.20
	sunnyNormLevel    = 0.65
	humidThreshold    = 80.0
	humidConfidence   = 0.7
	levelConfidence   = 0.8
	defaultNormLevel  = 0.5
)

// LightHistory is a ring buffer of the most recent average-light values
type LightHistory struct {
	values [LightHistorySize]float64
	head   int // next write position
	size   int
}

// Push appends v, evicting the oldest value when full
func (h *LightHistory) Push(v float64) {
	h.values[h.head] = v
	h.head = (h.head + 1) % LightHistorySize
	if h.size < LightHistorySize {
		h.size++
	}
}

// Len returns the number of stored values
func (h *LightHistory) Len() int {
	return h.size
}

// At returns the i-th most recent value (0 = latest)
func (h *LightHistory) At(i int) float64 {
	idx := (h.head - 1 - i + 2*LightHistorySize) % LightHistorySize
	return h.values[idx]
}

// MinMax returns the smallest and largest stored values
func (h *LightHistory) MinMax() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < h.size; i++ {
		v := h.At(i)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Decision is the outcome of the environment rules for one sample
type Decision struct {
	State          EnvironmentState
	Confidence     float64
	RelLightChange float64
	NormLevel      float64
}

// Decide applies the environment rules in priority order:
// unstable light, then humid haze, then sunny/cloudy by normalized level.
// A nil or NaN humidity is treated as absent.
func Decide(history *LightHistory, humidity *float64) Decision {
	var d Decision
	if history.Len() == 0 {
		d.State = Sunny
		d.Confidence = levelConfidence
		d.NormLevel = defaultNormLevel
		return d
	}

	latest := history.At(0)
	if history.Len() >= 2 {
		previous := history.At(1)
		d.RelLightChange = math.Abs(latest-previous) / math.Max(1, math.Abs(previous))
	}

	if d.RelLightChange > unstableRelChange {
		d.State = Unstable
		d.Confidence = math.Min(1, d.RelLightChange/unstableFullScale)
		return d
	}

	d.NormLevel = defaultNormLevel
	levelKnown := false
	if history.Len() >= minNormSamples {
		lo, hi := history.MinMax()
		if hi > lo {
			d.NormLevel = (latest - lo) / math.Max(1, hi-lo)
			levelKnown = true
		}
	}

	if humidity != nil && !math.IsNaN(*humidity) && *humidity >= humidThreshold && d.NormLevel < sunnyNormLevel {
		d.State = HumidHazy
		d.Confidence = humidConfidence
		return d
	}

	d.Confidence = levelConfidence
	if !levelKnown || d.NormLevel >= sunnyNormLevel {
		d.State = Sunny
	} else {
		d.State = Cloudy
	}
	return d
}

// EnvironmentClassifier keeps one light history per device
type EnvironmentClassifier struct {
	mu        sync.Mutex
	histories map[string]*LightHistory
}

// NewEnvironmentClassifier creates an empty classifier
func NewEnvironmentClassifier() *EnvironmentClassifier {
	return &EnvironmentClassifier{
		histories: make(map[string]*LightHistory),
	}
}

// Classify records avgLight for the device and classifies the environment
func (c *EnvironmentClassifier) Classify(deviceID string, avgLight float64, humidity *float64) models.EnvironmentResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	history, exists := c.histories[deviceID]
	if !exists {
		history = &LightHistory{}
		c.histories[deviceID] = history
	}
	history.Push(avgLight)

	d := Decide(history, humidity)
	return models.EnvironmentResult{
		State:          int(d.State),
		Label:          d.State.String(),
		Confidence:     d.Confidence,
		RelLightChange: d.RelLightChange,
	}
}

// HistoryLen returns the number of samples stored for a device
func (c *EnvironmentClassifier) HistoryLen(deviceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if history, exists := c.histories[deviceID]; exists {
		return history.Len()
	}
	return 0
}
