// Package tracking finds registered planar patterns in video frames and reports their pose.
package tracking

import (
	"math"

	"github.com/pkg/errors"

	"github.com/LdDl/surface-tuio/tuio"
)

const (
	// MinMatchCount is the number of ratio-test survivors needed to try a homography
	MinMatchCount = 10
	// LoweRatio is the best-to-second-best distance ratio a match must stay below
	LoweRatio = 0.7
	// ReprojectionThreshold is the RANSAC inlier distance in pixels
	ReprojectionThreshold = 5.0
	// AspectRatioTolerance bounds the relative change of aspect ratio between pattern and projection
	AspectRatioTolerance = 0.1

	knnNeighbours = 2
)

// ErrEmptyDescriptors is returned when matching is asked for without pattern or frame descriptors.
var ErrEmptyDescriptors = errors.New("pattern and frame descriptors must not be empty")

// Result is the pose of one pattern in one frame. Bounds are normalized by frame height.
type Result struct {
	PatternID string
	Bounds    tuio.Bounds
}

// IsValid returns true if result has an identifier and non-empty bounds
func (r Result) IsValid() bool {
	return r.PatternID != "" && !r.Bounds.IsEmpty()
}

// Engine matches one pattern against one frame. An Engine must not be used by two goroutines at once.
type Engine struct {
	matcher   Matcher
	estimator HomographyEstimator
}

// NewEngineDefault creates engine with brute force matching and RANSAC estimation
func NewEngineDefault() *Engine {
	return NewEngine(NewBruteForceMatcher(), NewRANSACEstimatorDefault())
}

// NewEngine creates new instance of Engine
func NewEngine(matcher Matcher, estimator HomographyEstimator) *Engine {
	return &Engine{
		matcher:   matcher,
		estimator: estimator,
	}
}

// Clone returns an engine with its own matcher
func (engine *Engine) Clone() *Engine {
	return NewEngine(engine.matcher.Clone(), engine.estimator)
}

// GoodMatches returns the k=2 matches of pattern against frame which pass the ratio test
func (engine *Engine) GoodMatches(pattern, frame Features) ([]DMatch, error) {
	if pattern.IsEmpty() || frame.IsEmpty() {
		return nil, ErrEmptyDescriptors
	}
	knn, err := engine.matcher.KnnMatch(pattern.Descriptors, frame.Descriptors, knnNeighbours)
	if err != nil {
		return nil, errors.Wrap(err, "knn match")
	}
	good := make([]DMatch, 0, len(knn))
	for _, pair := range knn {
		if len(pair) < knnNeighbours {
			continue
		}
		if pair[0].Distance < LoweRatio*pair[1].Distance {
			good = append(good, pair[0])
		}
	}
	return good, nil
}

// Match locates pattern in frame. The boolean is false when the pattern is not found,
// which is the common case and not an error. Errors are reserved for contract violations.
func (engine *Engine) Match(pattern *Pattern, frame Features, frameHeight int) (Result, bool, error) {
	if pattern == nil {
		return Result{}, false, ErrEmptyDescriptors
	}
	good, err := engine.GoodMatches(pattern.Features, frame)
	if err != nil {
		return Result{}, false, errors.Wrapf(err, "pattern %s", pattern.ID)
	}
	if len(good) < MinMatchCount {
		return Result{}, false, nil
	}

	src := make([]Point, len(good))
	dst := make([]Point, len(good))
	for i, m := range good {
		if m.QueryIdx >= len(pattern.Features.Keypoints) || m.TrainIdx >= len(frame.Keypoints) {
			return Result{}, false, errors.Errorf("pattern %s: match %d references missing keypoint", pattern.ID, i)
		}
		src[i] = pattern.Features.Keypoints[m.QueryIdx]
		dst[i] = frame.Keypoints[m.TrainIdx]
	}
	h, err := engine.estimator.EstimateHomography(src, dst, ReprojectionThreshold)
	if err != nil {
		return Result{}, false, nil
	}

	corners := pattern.Corners()
	projected, ok := PerspectiveTransform(corners, h)
	if !ok {
		return Result{}, false, nil
	}
	rect := MinAreaRect(projected)
	width, height := rect.LongSide(), rect.ShortSide()

	original := MinAreaRect(corners)
	originalWidth, originalHeight := original.LongSide(), original.ShortSide()
	if originalHeight == 0 || height == 0 {
		return Result{}, false, nil
	}
	ratio := width / height
	originalRatio := originalWidth / originalHeight
	if math.Abs(1-originalRatio/ratio) > AspectRatioTolerance {
		return Result{}, false, nil
	}

	fh := float64(frameHeight)
	if fh <= 0 {
		fh = float64(frame.Height)
	}
	if fh <= 0 {
		return Result{}, false, errors.Errorf("pattern %s: frame height is unknown", pattern.ID)
	}
	bounds := tuio.Bounds{
		X:      rect.Center.X,
		Y:      rect.Center.Y,
		Angle:  h.Rotation() + 180,
		Width:  width,
		Height: height,
	}.Normalized(fh, fh)
	return Result{PatternID: pattern.ID, Bounds: bounds}, true, nil
}
