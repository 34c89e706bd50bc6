package tracking

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// BruteForceMatcher compares every query descriptor with every train descriptor using L2 distance.
// It has no state, so Clone returns the receiver.
type BruteForceMatcher struct{}

// NewBruteForceMatcher creates new instance of BruteForceMatcher
func NewBruteForceMatcher() *BruteForceMatcher {
	return &BruteForceMatcher{}
}

// KnnMatch returns up to k matches per query descriptor sorted by distance.
// Ties are broken by train index so results are deterministic.
func (m *BruteForceMatcher) KnnMatch(query, train [][]float32, k int) ([][]DMatch, error) {
	if k <= 0 {
		return nil, errors.Errorf("k must be positive, got %d", k)
	}
	out := make([][]DMatch, len(query))
	candidates := make([]DMatch, len(train))
	for qi, q := range query {
		for ti, t := range train {
			if len(t) != len(q) {
				return nil, errors.Errorf("descriptor size mismatch: query %d has %d values, train %d has %d", qi, len(q), ti, len(t))
			}
			candidates[ti] = DMatch{QueryIdx: qi, TrainIdx: ti, Distance: l2(q, t)}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Distance < candidates[j].Distance
		})
		n := k
		if n > len(candidates) {
			n = len(candidates)
		}
		row := make([]DMatch, n)
		copy(row, candidates[:n])
		out[qi] = row
	}
	return out, nil
}

// Clone returns m
func (m *BruteForceMatcher) Clone() Matcher {
	return m
}

func l2(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
