// Package forecast projects next-week progress per course from a short
// synthetic history and ranks courses by risk.
package forecast

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/studypath/studypath/internal/progress"
)

const (
	historyPoints  = 5
	noiseStdDev    = 5.0
	historyFloor   = 40.0
	historyCeiling = 100.0
	cautionBelow   = 60.0
)

const (
	AdviceCaution = "Needs reinforcement in the coming week!"
	AdviceOnTrack = "Keep up the current pace!"
)

type Prediction struct {
	Course            string  `json:"course"`
	PredictedProgress float64 `json:"predicted_progress"`
	Risk              float64 `json:"risk"`
	Advice            string  `json:"advice"`
}

// Predictor is safe for concurrent use.
type Predictor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPredictor uses rng for the synthetic history. A nil rng is seeded
// from the clock.
func NewPredictor(rng *rand.Rand) *Predictor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Predictor{rng: rng}
}

// Predict returns one prediction per record, highest risk first.
func (p *Predictor) Predict(records []progress.Record) []Prediction {
	out := make([]Prediction, 0, len(records))
	for _, r := range records {
		history := p.sampleHistory(float64(r.Progress))
		next := round1(extrapolate(history, historyPoints+1))
		risk := round1(math.Max(0, math.Min(100, 100-next)))

		advice := AdviceOnTrack
		if next < cautionBelow {
			advice = AdviceCaution
		}
		out = append(out, Prediction{
			Course:            r.Course,
			PredictedProgress: next,
			Risk:              risk,
			Advice:            advice,
		})
	}

	slices.SortStableFunc(out, func(a, b Prediction) int {
		return cmp.Compare(b.Risk, a.Risk)
	})
	return out
}

func (p *Predictor) sampleHistory(center float64) []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := make([]float64, historyPoints)
	for i := range h {
		v := center + p.rng.NormFloat64()*noiseStdDev
		h[i] = math.Max(historyFloor, math.Min(historyCeiling, v))
	}
	return h
}

// extrapolate fits y = a + b*x by least squares over x = 1..len(ys) and
// evaluates it at x.
func extrapolate(ys []float64, x float64) float64 {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		xi := float64(i + 1)
		sumX += xi
		sumY += y
		sumXY += xi * y
		sumXX += xi * xi
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return sumY / n
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	return intercept + slope*x
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
