package ml

import (
	"math"

	"solar-tracker/internal/models"
)

// ADWINConfig configures the adaptive windowing drift detector
type ADWINConfig struct {
	Delta           float64 // significance of the cut test
	Clock           int     // test for a cut every Clock updates
	MaxBuckets      int     // buckets kept per row before two are merged
	MinWindowLength int     // minimum size of each sub-window in a cut
	GracePeriod     int     // no test until the window holds more samples than this
}

// DefaultADWINConfig returns default configuration
func DefaultADWINConfig() ADWINConfig {
	return ADWINConfig{
		Delta:           0.002,
		Clock:           1,
		MaxBuckets:      5,
		MinWindowLength: 5,
		GracePeriod:     10,
	}
}

// bucket summarizes 2^row consecutive samples
type bucket struct {
	total    float64
	variance float64 // sum of squared deviations from the bucket mean
}

// ADWIN keeps a variable-length window over a scalar stream, compressed into an
// exponential histogram. When the means of an older and a newer sub-window differ
// by more than the Hoeffding-style bound, the older part is dropped.
// Not safe for concurrent use.
type ADWIN struct {
	config ADWINConfig

	rows     [][]bucket // rows[i] holds buckets of 2^i samples, oldest first; higher rows are older
	width    int
	total    float64
	variance float64
	tick     int
}

// NewADWIN creates an empty detector
func NewADWIN(config ADWINConfig) *ADWIN {
	if config.Clock < 1 {
		config.Clock = 1
	}
	return &ADWIN{
		config: config,
		rows:   [][]bucket{nil},
	}
}

// Update adds x to the window and reports whether a change was detected
func (a *ADWIN) Update(x float64) bool {
	a.tick++
	a.insert(x)
	if a.tick%a.config.Clock != 0 || a.width <= a.config.GracePeriod {
		return false
	}
	return a.detectChange()
}

// Width returns the number of samples in the window
func (a *ADWIN) Width() int {
	return a.width
}

// Mean returns the mean of the window
func (a *ADWIN) Mean() float64 {
	if a.width == 0 {
		return 0
	}
	return a.total / float64(a.width)
}

func (a *ADWIN) insert(x float64) {
	a.width++
	if a.width > 1 {
		prevMean := a.total / float64(a.width-1)
		a.variance += float64(a.width-1) * (x - prevMean) * (x - prevMean) / float64(a.width)
	}
	a.total += x
	a.rows[0] = append(a.rows[0], bucket{total: x})
	a.compress()
}

// compress merges the two oldest buckets of any row that overflowed into the next row
func (a *ADWIN) compress() {
	for i := 0; i < len(a.rows); i++ {
		if len(a.rows[i]) <= a.config.MaxBuckets {
			break
		}
		size := math.Exp2(float64(i))
		b1, b2 := a.rows[i][0], a.rows[i][1]
		u1, u2 := b1.total/size, b2.total/size
		merged := bucket{
			total:    b1.total + b2.total,
			variance: b1.variance + b2.variance + size*size*(u1-u2)*(u1-u2)/(2*size),
		}
		a.rows[i] = append(a.rows[i][:0], a.rows[i][2:]...)
		if i+1 == len(a.rows) {
			a.rows = append(a.rows, nil)
		}
		a.rows[i+1] = append(a.rows[i+1], merged)
	}
}

// detectChange scans every split point from oldest to newest; on a cut it drops the
// older sub-window and scans again
func (a *ADWIN) detectChange() bool {
	detected := false
	for a.width > a.config.GracePeriod {
		cut := a.findCut()
		if cut == 0 {
			break
		}
		detected = true
		for removed := 0; removed < cut; {
			removed += a.deleteOldest()
		}
	}
	return detected
}

// findCut returns the size of the older sub-window at the first significant split, or 0
func (a *ADWIN) findCut() int {
	minLen := float64(a.config.MinWindowLength)
	var n0, u0 float64
	n1, u1 := float64(a.width), a.total

	for i := len(a.rows) - 1; i >= 0; i-- {
		size := math.Exp2(float64(i))
		for k, b := range a.rows[i] {
			n0 += size
			n1 -= size
			u0 += b.total
			u1 -= b.total

			if i == 0 && k == len(a.rows[0])-1 {
				return 0
			}
			if n1 < minLen {
				return 0
			}
			if n0 >= minLen && a.cutExpected(n0, n1, math.Abs(u0/n0-u1/n1)) {
				return int(n0)
			}
		}
	}
	return 0
}

func (a *ADWIN) cutExpected(n0, n1, absDiff float64) bool {
	n := float64(a.width)
	minLen := float64(a.config.MinWindowLength)
	m := 1/(n0-minLen+1) + 1/(n1-minLen+1)
	dd := math.Log(2 * math.Log(n) / a.config.Delta)
	v := a.variance / n
	epsilon := math.Sqrt(2*m*v*dd) + 2.0/3.0*dd*m
	return absDiff > epsilon
}

// deleteOldest removes the oldest bucket and returns how many samples it held
func (a *ADWIN) deleteOldest() int {
	last := len(a.rows) - 1
	b := a.rows[last][0]
	size := math.Exp2(float64(last))

	a.width -= int(size)
	a.total -= b.total
	if a.width > 0 {
		u := b.total / size
		mean := a.total / float64(a.width)
		w := float64(a.width)
		a.variance -= b.variance + size*w*(u-mean)*(u-mean)/(size+w)
		if a.variance < 0 {
			a.variance = 0
		}
	} else {
		a.total = 0
		a.variance = 0
	}

	a.rows[last] = a.rows[last][1:]
	if len(a.rows[last]) == 0 && last > 0 {
		a.rows = a.rows[:last]
	}
	return int(size)
}

// DriftMonitor counts drift events on the light-variance stream
type DriftMonitor struct {
	detector DriftDetector
	count    int
}

// NewDriftMonitor wraps a DriftDetector with a cumulative event counter
func NewDriftMonitor(detector DriftDetector) *DriftMonitor {
	return &DriftMonitor{detector: detector}
}

// Update feeds one value; the count never decreases
func (d *DriftMonitor) Update(value float64) models.DriftResult {
	detected := d.detector.Update(value)
	if detected {
		d.count++
	}
	return models.DriftResult{Detected: detected, CumulativeCount: d.count}
}

// Count returns the number of drift events so far
func (d *DriftMonitor) Count() int {
	return d.count
}
