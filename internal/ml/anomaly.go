package ml

import (
	"math"
	"math/rand"

	"solar-tracker/internal/models"
)

// FeatureRange is the expected [Min, Max] of one input; values are scaled to [0, 1] with it
type FeatureRange struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// HSTConfig configures the half-space trees ensemble
type HSTConfig struct {
	NTrees     int
	Height     int
	WindowSize int
	Seed       int64
	Threshold  float64 // scores strictly above this are anomalies
	Limits     []FeatureRange
}

// DefaultHSTConfig returns the configuration used for tracker telemetry:
// average light and servo angles in ADC/degree units, light variance up to (4095/2)^2.
func DefaultHSTConfig() HSTConfig {
	return HSTConfig{
		NTrees:     10,
		Height:     8,
		WindowSize: 250,
		Seed:       42,
		Threshold:  0.7,
		Limits: []FeatureRange{
			{Min: 0, Max: 4095},            // avg_light
			{Min: 0, Max: 2047.5 * 2047.5}, // light_variance
			{Min: 0, Max: 180},             // servo_h
			{Min: 0, Max: 180},             // servo_v
		},
	}
}

const hstPadding = 0.15

// hsTree is a complete binary tree stored heap-style: children of i are 2i+1 and 2i+2
type hsTree struct {
	feature []int
	split   []float64
	rMass   []float64 // mass seen in the previous (reference) window
	lMass   []float64 // mass seen in the current (latest) window
}

// HalfSpaceTrees is a streaming anomaly detector over random half-space partitions.
// Points that land in sparsely populated regions of the reference window score close to 1.
// Not safe for concurrent use.
type HalfSpaceTrees struct {
	config      HSTConfig
	trees       []hsTree
	counter     int
	firstWindow bool
	maxScore    float64
	sizeLimit   float64
}

// NewHalfSpaceTrees builds the ensemble deterministically from config.Seed
func NewHalfSpaceTrees(config HSTConfig) *HalfSpaceTrees {
	rng := rand.New(rand.NewSource(config.Seed))
	nodes := 1<<(config.Height+1) - 1
	nFeatures := len(config.Limits)

	trees := make([]hsTree, config.NTrees)
	for t := range trees {
		tree := hsTree{
			feature: make([]int, nodes),
			split:   make([]float64, nodes),
			rMass:   make([]float64, nodes),
			lMass:   make([]float64, nodes),
		}
		lo := make([]float64, nFeatures)
		hi := make([]float64, nFeatures)
		for i := range hi {
			hi[i] = 1
		}
		buildPadded(&tree, 0, 0, config.Height, lo, hi, rng)
		trees[t] = tree
	}

	return &HalfSpaceTrees{
		config:      config,
		trees:       trees,
		firstWindow: true,
		maxScore:    float64(config.NTrees) * float64(config.WindowSize) * float64(nodes),
		sizeLimit:   0.1 * float64(config.WindowSize),
	}
}

// buildPadded picks a random feature per branch and splits its current range,
// keeping the split away from the edges by hstPadding
func buildPadded(tree *hsTree, node, depth, height int, lo, hi []float64, rng *rand.Rand) {
	if depth == height {
		return
	}
	f := rng.Intn(len(lo))
	a, b := lo[f], hi[f]
	at := a + hstPadding*(b-a) + rng.Float64()*(1-2*hstPadding)*(b-a)
	tree.feature[node] = f
	tree.split[node] = at

	leftHi := append([]float64(nil), hi...)
	leftHi[f] = at
	buildPadded(tree, 2*node+1, depth+1, height, lo, leftHi, rng)

	rightLo := append([]float64(nil), lo...)
	rightLo[f] = at
	buildPadded(tree, 2*node+2, depth+1, height, rightLo, hi, rng)
}

// scale maps x into the unit cube defined by the configured limits
func (h *HalfSpaceTrees) scale(x []float64) []float64 {
	if len(x) != len(h.config.Limits) {
		panic("ml: feature vector length does not match half-space trees limits")
	}
	out := make([]float64, len(x))
	for i, xi := range x {
		r := h.config.Limits[i]
		if width := r.Max - r.Min; width > 0 {
			out[i] = (xi - r.Min) / width
		}
	}
	return out
}

// walk calls visit for each node on the root-to-leaf path of x
func (h *HalfSpaceTrees) walk(tree *hsTree, x []float64, visit func(node, depth int) bool) {
	node := 0
	for depth := 0; ; depth++ {
		if !visit(node, depth) || depth == h.config.Height {
			return
		}
		if x[tree.feature[node]] < tree.split[node] {
			node = 2*node + 1
		} else {
			node = 2*node + 2
		}
	}
}

// ScoreOne returns the anomaly score of x in [0, 1]. It is 0 until the first window has filled.
func (h *HalfSpaceTrees) ScoreOne(x []float64) float64 {
	if h.firstWindow {
		return 0
	}
	scaled := h.scale(x)

	var score float64
	for t := range h.trees {
		tree := &h.trees[t]
		h.walk(tree, scaled, func(node, depth int) bool {
			score += tree.rMass[node] * math.Exp2(float64(depth))
			return tree.rMass[node] >= h.sizeLimit
		})
	}

	score = 1 - score/h.maxScore
	return math.Max(0, math.Min(1, score))
}

// LearnOne adds x to the latest window, rotating windows when it is full
func (h *HalfSpaceTrees) LearnOne(x []float64) {
	scaled := h.scale(x)
	for t := range h.trees {
		tree := &h.trees[t]
		h.walk(tree, scaled, func(node, _ int) bool {
			tree.lMass[node]++
			return true
		})
	}

	h.counter++
	if h.counter == h.config.WindowSize {
		for t := range h.trees {
			tree := &h.trees[t]
			copy(tree.rMass, tree.lMass)
			for i := range tree.lMass {
				tree.lMass[i] = 0
			}
		}
		h.counter = 0
		h.firstWindow = false
	}
}

// AnomalyScorer scores the (avg light, variance, servo H, servo V) tuple of each sample
type AnomalyScorer struct {
	scorer    Scorer
	threshold float64
}

// NewAnomalyScorer wraps a Scorer with a classification threshold
func NewAnomalyScorer(scorer Scorer, threshold float64) *AnomalyScorer {
	return &AnomalyScorer{scorer: scorer, threshold: threshold}
}

// ScoreThenLearn scores the sample first, then absorbs it into the model
func (a *AnomalyScorer) ScoreThenLearn(features models.FeatureVector) models.AnomalyResult {
	x := []float64{features.AvgLight, features.LightVariance, features.ServoH, features.ServoV}

	score := a.scorer.ScoreOne(x)
	a.scorer.LearnOne(x)

	return models.AnomalyResult{
		Detected:  score > a.threshold,
		Score:     score,
		Threshold: a.threshold,
	}
}
