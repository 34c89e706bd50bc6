package tracking

import (
	"math"

	"github.com/pkg/errors"
)

const (
	eps = 0.00001

	patternWidth     = 100
	patternHeight    = 50
	pointsPerPattern = 20
	frameWidth       = 640
	frameHeight      = 480
)

// similarity returns a transform rotating by deg, scaling by s and translating by (tx, ty)
func similarity(deg, s, tx, ty float64) (func(Point) Point, Homography) {
	rad := deg * math.Pi / 180.0
	c, sn := math.Cos(rad), math.Sin(rad)
	h := Homography{
		{s * c, -s * sn, tx},
		{s * sn, s * c, ty},
		{0, 0, 1},
	}
	return func(p Point) Point {
		q, _ := h.Apply(p)
		return q
	}, h
}

// descriptor is one-hot at index idx
func descriptor(dims, idx int) []float32 {
	d := make([]float32, dims)
	d[idx] = 100
	return d
}

// patternKeypoints is a 5x4 grid inside the pattern image
func patternKeypoints() []Point {
	pts := make([]Point, pointsPerPattern)
	for i := range pts {
		pts[i] = Point{X: 5 + float64(i%5)*22, Y: 5 + float64(i/5)*12}
	}
	return pts
}

// syntheticPattern has unique descriptors offset by slot*pointsPerPattern
func syntheticPattern(id string, slot, dims int) *Pattern {
	kps := patternKeypoints()
	descs := make([][]float32, len(kps))
	for i := range kps {
		descs[i] = descriptor(dims, slot*pointsPerPattern+i)
	}
	return &Pattern{
		ID:    id,
		Scale: 1,
		Features: Features{
			Keypoints:   kps,
			Descriptors: descs,
			Width:       patternWidth,
			Height:      patternHeight,
		},
	}
}

// placement puts the first n keypoints of pattern slot into the frame through transform
type placement struct {
	slot      int
	n         int
	transform func(Point) Point
}

func syntheticFrame(dims int, placements ...placement) Features {
	f := Features{Width: frameWidth, Height: frameHeight}
	kps := patternKeypoints()
	for _, pl := range placements {
		for i := 0; i < pl.n; i++ {
			f.Keypoints = append(f.Keypoints, pl.transform(kps[i]))
			f.Descriptors = append(f.Descriptors, descriptor(dims, pl.slot*pointsPerPattern+i))
		}
	}
	return f
}

// staticExtractor returns the same frame features for every frame
type staticExtractor struct {
	frame    Features
	patterns map[string]Features
}

func (e *staticExtractor) Extract(Frame) (Features, error) {
	return e.frame, nil
}

func (e *staticExtractor) Load(path string, scale float64) (Features, error) {
	f, ok := e.patterns[path]
	if !ok {
		return Features{}, errors.Errorf("can't read %s", path)
	}
	return f, nil
}

// recordingEstimator counts calls and never finds a homography
type recordingEstimator struct {
	calls int
	last  int
}

func (e *recordingEstimator) EstimateHomography(src, dst []Point, threshold float64) (Homography, error) {
	e.calls++
	e.last = len(src)
	return Homography{}, ErrHomographyNotFound
}

func testFrame() Frame {
	return Frame{Data: make([]byte, frameWidth*frameHeight), Width: frameWidth, Height: frameHeight, Channels: 1}
}
