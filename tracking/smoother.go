package tracking

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// smoothedPattern is one pattern followed by an 8-D Kalman filter.
// State vector: [cx, cy, w, h, vx, vy, vw, vh] - center position, size, and velocities.
type smoothedPattern struct {
	tracker      *kalman_filter.KalmanBBox
	noMatchTimes int
	updated      bool
}

// Smoother filters the center and size of every pattern across frames. Angles pass through.
type Smoother struct {
	patterns   map[string]*smoothedPattern
	dt         float64
	stdDevA    float64
	stdDevM    float64
	maxNoMatch int
}

// NewSmootherDefault creates smoother for normalized bounds with unit time step
func NewSmootherDefault() *Smoother {
	return NewSmoother(1.0, 0.01, 0.005, 5)
}

// NewSmoother creates new instance of Smoother. stdDevA is the process (acceleration) noise,
// stdDevM the measurement noise of every component; both are in bounds units.
// A pattern missing for more than maxNoMatch frames starts from scratch when it reappears.
func NewSmoother(dt, stdDevA, stdDevM float64, maxNoMatch int) *Smoother {
	return &Smoother{
		patterns:   make(map[string]*smoothedPattern),
		dt:         dt,
		stdDevA:    stdDevA,
		stdDevM:    stdDevM,
		maxNoMatch: maxNoMatch,
	}
}

// Len returns number of followed patterns
func (smoother *Smoother) Len() int {
	return len(smoother.patterns)
}

// Smooth returns results with filtered bounds, in the same order.
func (smoother *Smoother) Smooth(results []Result) ([]Result, error) {
	for _, sp := range smoother.patterns {
		sp.updated = false
		sp.tracker.Predict()
	}
	out := make([]Result, len(results))
	for i, result := range results {
		out[i] = result
		b := result.Bounds
		sp, ok := smoother.patterns[result.PatternID]
		if !ok {
			smoother.patterns[result.PatternID] = smoother.newPattern(result)
			continue
		}
		err := sp.tracker.Update(b.X, b.Y, b.Width, b.Height)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't update smoother of pattern %s", result.PatternID)
		}
		cx, cy, w, h := sp.tracker.GetState()
		out[i].Bounds.X = cx
		out[i].Bounds.Y = cy
		out[i].Bounds.Width = w
		out[i].Bounds.Height = h
		sp.updated = true
		sp.noMatchTimes = 0
	}
	// Clean up patterns which were not seen for a long time
	for id, sp := range smoother.patterns {
		if sp.updated {
			continue
		}
		sp.noMatchTimes++
		if sp.noMatchTimes > smoother.maxNoMatch {
			delete(smoother.patterns, id)
		}
	}
	return out, nil
}

// Reset forgets every pattern
func (smoother *Smoother) Reset() {
	smoother.patterns = make(map[string]*smoothedPattern)
}

func (smoother *Smoother) newPattern(result Result) *smoothedPattern {
	b := result.Bounds
	kf := kalman_filter.NewKalmanBBox(
		smoother.dt, 0, 0, 0, 0,
		smoother.stdDevA, smoother.stdDevM, smoother.stdDevM, smoother.stdDevM, smoother.stdDevM,
		kalman_filter.WithStateBBox(b.X, b.Y, b.Width, b.Height),
	)
	return &smoothedPattern{tracker: kf, updated: true}
}
