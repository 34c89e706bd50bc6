package tracking

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RANSACEstimator fits a homography with RANSAC over 4-point samples and refines it on the inliers
// with the normalized DLT. The random source is re-seeded on every call, so identical input gives
// identical output and a single estimator may be shared.
type RANSACEstimator struct {
	maxIterations int
	confidence    float64
	seed          uint64
}

// NewRANSACEstimatorDefault creates estimator with 2000 iterations and 0.995 confidence
func NewRANSACEstimatorDefault() *RANSACEstimator {
	return NewRANSACEstimator(2000, 0.995, 42)
}

// NewRANSACEstimator creates new instance of RANSACEstimator
func NewRANSACEstimator(maxIterations int, confidence float64, seed uint64) *RANSACEstimator {
	return &RANSACEstimator{
		maxIterations: maxIterations,
		confidence:    confidence,
		seed:          seed,
	}
}

// EstimateHomography maps src onto dst. Points farther than threshold pixels from their
// reprojection are outliers.
func (est *RANSACEstimator) EstimateHomography(src, dst []Point, threshold float64) (Homography, error) {
	n := len(src)
	if n != len(dst) {
		return Homography{}, errors.Errorf("point count mismatch: %d src, %d dst", n, len(dst))
	}
	if n < 4 {
		return Homography{}, errors.Wrapf(ErrHomographyNotFound, "need 4 correspondences, got %d", n)
	}
	rng := rand.New(rand.NewPCG(est.seed, uint64(n)))
	thresholdSq := threshold * threshold

	var bestInliers []int
	iterations := est.maxIterations
	sample := [4]int{}
	sampleSrc := make([]Point, 4)
	sampleDst := make([]Point, 4)
	for iter := 0; iter < iterations; iter++ {
		pickDistinct(rng, n, sample[:])
		for i, idx := range sample {
			sampleSrc[i] = src[idx]
			sampleDst[i] = dst[idx]
		}
		if degenerateSample(sampleSrc) || degenerateSample(sampleDst) {
			continue
		}
		h, ok := fitDLT(sampleSrc, sampleDst)
		if !ok {
			continue
		}
		inliers := collectInliers(h, src, dst, thresholdSq)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			iterations = adaptiveIterations(est.confidence, float64(len(inliers))/float64(n), iterations)
		}
		if len(bestInliers) == n {
			break
		}
	}
	if len(bestInliers) < 4 {
		return Homography{}, errors.Wrap(ErrHomographyNotFound, "not enough inliers")
	}

	inSrc := make([]Point, len(bestInliers))
	inDst := make([]Point, len(bestInliers))
	for i, idx := range bestInliers {
		inSrc[i] = src[idx]
		inDst[i] = dst[idx]
	}
	h, ok := fitDLT(inSrc, inDst)
	if !ok {
		return Homography{}, errors.Wrap(ErrHomographyNotFound, "degenerate inlier set")
	}
	return h, nil
}

func pickDistinct(rng *rand.Rand, n int, out []int) {
	for i := range out {
	retry:
		for {
			v := rng.IntN(n)
			for j := 0; j < i; j++ {
				if out[j] == v {
					continue retry
				}
			}
			out[i] = v
			break
		}
	}
}

// degenerateSample reports whether any three of the four points are (nearly) collinear
func degenerateSample(p []Point) bool {
	scale := 0.0
	for _, q := range p {
		scale = math.Max(scale, math.Max(math.Abs(q.X), math.Abs(q.Y)))
	}
	tol := 1e-9 * math.Max(1, scale*scale)
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				if math.Abs(cross(p[i], p[j], p[k])) <= tol {
					return true
				}
			}
		}
	}
	return false
}

func collectInliers(h Homography, src, dst []Point, thresholdSq float64) []int {
	var inliers []int
	for i := range src {
		q, ok := h.Apply(src[i])
		if !ok {
			continue
		}
		dx, dy := q.X-dst[i].X, q.Y-dst[i].Y
		if dx*dx+dy*dy <= thresholdSq {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

func adaptiveIterations(confidence, inlierRatio float64, current int) int {
	if inlierRatio >= 1 {
		return 0
	}
	denom := math.Log(1 - math.Pow(inlierRatio, 4))
	if denom >= 0 || math.IsInf(denom, -1) {
		return current
	}
	k := math.Log(1-confidence) / denom
	if k < float64(current) {
		return int(math.Ceil(k))
	}
	return current
}

// normalization returns the similarity moving the centroid of points to the origin with mean
// distance sqrt(2), together with its inverse.
func normalization(points []Point) (*mat.Dense, *mat.Dense, bool) {
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(points))
	cy /= float64(len(points))
	meanDist := 0.0
	for _, p := range points {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= float64(len(points))
	if meanDist < 1e-12 {
		return nil, nil, false
	}
	s := math.Sqrt2 / meanDist
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	inv := mat.NewDense(3, 3, []float64{
		1 / s, 0, cx,
		0, 1 / s, cy,
		0, 0, 1,
	})
	return t, inv, true
}

// fitDLT solves for the homography with the normalized direct linear transform
func fitDLT(src, dst []Point) (Homography, bool) {
	tSrc, _, ok := normalization(src)
	if !ok {
		return Homography{}, false
	}
	tDst, tDstInv, ok := normalization(dst)
	if !ok {
		return Homography{}, false
	}
	rows := 2 * len(src)
	if rows < 9 {
		rows = 9
	}
	a := mat.NewDense(rows, 9, nil)
	for i := range src {
		x, y := applyDense(tSrc, src[i])
		u, v := applyDense(tDst, dst[i])
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return Homography{}, false
	}
	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}
	var tmp, full mat.Dense
	tmp.Mul(tDstInv, hn)
	full.Mul(&tmp, tSrc)
	scale := full.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		return Homography{}, false
	}
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r][c] = full.At(r, c) / scale
		}
	}
	return h, true
}

func applyDense(t *mat.Dense, p Point) (float64, float64) {
	return t.At(0, 0)*p.X + t.At(0, 1)*p.Y + t.At(0, 2), t.At(1, 0)*p.X + t.At(1, 1)*p.Y + t.At(1, 2)
}
