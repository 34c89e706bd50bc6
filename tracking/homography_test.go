package tracking

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestRANSACEstimatorRecoversProjective(t *testing.T) {
	truth := Homography{
		{1.1, 0.2, 30},
		{-0.1, 0.9, 40},
		{0.0005, -0.0003, 1},
	}
	var src, dst []Point
	for y := 0.0; y < 200; y += 25 {
		for x := 0.0; x < 300; x += 40 {
			p := Point{X: x + 0.3*y, Y: y}
			q, _ := truth.Apply(p)
			src = append(src, p)
			dst = append(dst, q)
		}
	}
	// gross outliers
	for i := 0; i < len(dst); i += 6 {
		dst[i] = Point{X: dst[i].X + 80, Y: dst[i].Y - 60}
	}

	est := NewRANSACEstimatorDefault()
	h, err := est.EstimateHomography(src, dst, ReprojectionThreshold)
	if err != nil {
		t.Fatalf("Estimation failed: %v", err)
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if math.Abs(h[r][c]-truth[r][c]) > 1e-6*math.Max(1, math.Abs(truth[r][c])) {
				t.Errorf("H[%d][%d] = %v, correct answer: %v", r, c, h[r][c], truth[r][c])
			}
		}
	}

	again, err := est.EstimateHomography(src, dst, ReprojectionThreshold)
	if err != nil {
		t.Fatalf("Second estimation failed: %v", err)
	}
	if again != h {
		t.Error("Estimation must be deterministic for identical input")
	}
}

func TestRANSACEstimatorFailures(t *testing.T) {
	est := NewRANSACEstimatorDefault()
	three := []Point{{0, 0}, {1, 0}, {0, 1}}
	if _, err := est.EstimateHomography(three, three, 5); !errors.Is(err, ErrHomographyNotFound) {
		t.Errorf("Expected ErrHomographyNotFound for 3 points, got %v", err)
	}

	var line []Point
	for i := 0; i < 12; i++ {
		line = append(line, Point{X: float64(i), Y: 2 * float64(i)})
	}
	if _, err := est.EstimateHomography(line, line, 5); !errors.Is(err, ErrHomographyNotFound) {
		t.Errorf("Expected ErrHomographyNotFound for collinear points, got %v", err)
	}

	if _, err := est.EstimateHomography(three, line, 5); err == nil {
		t.Error("Expected error for mismatched point counts")
	}
}
