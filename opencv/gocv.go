//go:build opencv

package opencv

import (
	"context"
	"image"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/LdDl/surface-tuio/tracking"
)

// Available reports whether the OpenCV backed capabilities were compiled in
func Available() bool {
	return true
}

// SIFTExtractor computes SIFT keypoints and descriptors on grayscale images.
type SIFTExtractor struct {
	mu   sync.Mutex
	sift gocv.SIFT
}

// NewSIFTExtractor creates a SIFT extractor with OpenCV defaults
func NewSIFTExtractor() (tracking.FeatureExtractor, error) {
	return &SIFTExtractor{sift: gocv.NewSIFT()}, nil
}

// Extract computes features of a BGR or grayscale frame
func (extractor *SIFTExtractor) Extract(frame tracking.Frame) (tracking.Features, error) {
	if frame.IsEmpty() {
		return tracking.Features{}, errors.New("empty frame")
	}
	matType := gocv.MatTypeCV8UC3
	switch frame.Channels {
	case 1:
		matType = gocv.MatTypeCV8UC1
	case 4:
		matType = gocv.MatTypeCV8UC4
	}
	img, err := gocv.NewMatFromBytes(frame.Height, frame.Width, matType, frame.Data)
	if err != nil {
		return tracking.Features{}, errors.Wrap(err, "frame to mat")
	}
	defer img.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	switch frame.Channels {
	case 1:
		img.CopyTo(&gray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	return extractor.compute(gray), nil
}

// Load reads an image file as grayscale, resizes it by scale and computes its features
func (extractor *SIFTExtractor) Load(path string, scale float64) (tracking.Features, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer img.Close()
	if img.Empty() {
		return tracking.Features{}, errors.Errorf("can't read image %s", path)
	}
	if scale <= 0 || scale == 1.0 {
		return extractor.compute(img), nil
	}
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Point{}, scale, scale, gocv.InterpolationLinear)
	return extractor.compute(resized), nil
}

func (extractor *SIFTExtractor) compute(gray gocv.Mat) tracking.Features {
	mask := gocv.NewMat()
	defer mask.Close()
	extractor.mu.Lock()
	keypoints, descriptors := extractor.sift.DetectAndCompute(gray, mask)
	extractor.mu.Unlock()
	defer descriptors.Close()
	features := tracking.Features{
		Keypoints:   make([]tracking.Point, len(keypoints)),
		Descriptors: matToDescriptors(descriptors),
		Width:       gray.Cols(),
		Height:      gray.Rows(),
	}
	for i, kp := range keypoints {
		features.Keypoints[i] = tracking.NewPoint(kp.X, kp.Y)
	}
	return features
}

// Close releases the native detector
func (extractor *SIFTExtractor) Close() error {
	return extractor.sift.Close()
}

// FlannMatcher wraps an OpenCV FLANN based matcher. One instance must not be shared between goroutines;
// use Clone for every worker.
type FlannMatcher struct {
	mu      sync.Mutex
	matcher gocv.FlannBasedMatcher
}

// NewFlannMatcher creates a FLANN matcher with OpenCV defaults (KD-tree index)
func NewFlannMatcher() (tracking.Matcher, error) {
	return &FlannMatcher{matcher: gocv.NewFlannBasedMatcher()}, nil
}

// KnnMatch finds k nearest train descriptors for every query descriptor
func (flann *FlannMatcher) KnnMatch(query, train [][]float32, k int) ([][]tracking.DMatch, error) {
	if len(query) == 0 || len(train) == 0 {
		return nil, nil
	}
	queryMat, err := descriptorsToMat(query)
	if err != nil {
		return nil, errors.Wrap(err, "query descriptors")
	}
	defer queryMat.Close()
	trainMat, err := descriptorsToMat(train)
	if err != nil {
		return nil, errors.Wrap(err, "train descriptors")
	}
	defer trainMat.Close()

	flann.mu.Lock()
	raw := flann.matcher.KnnMatch(queryMat, trainMat, k)
	flann.mu.Unlock()

	out := make([][]tracking.DMatch, len(raw))
	for i, candidates := range raw {
		out[i] = make([]tracking.DMatch, len(candidates))
		for j, m := range candidates {
			out[i][j] = tracking.DMatch{QueryIdx: m.QueryIdx, TrainIdx: m.TrainIdx, Distance: m.Distance}
		}
	}
	return out, nil
}

// Clone creates an independent native matcher
func (flann *FlannMatcher) Clone() tracking.Matcher {
	return &FlannMatcher{matcher: gocv.NewFlannBasedMatcher()}
}

// HomographyEstimator fits homographies with cv::findHomography using RANSAC.
type HomographyEstimator struct {
	maxIterations int
	confidence    float64
}

// NewHomographyEstimator creates an estimator with OpenCV defaults
func NewHomographyEstimator() (tracking.HomographyEstimator, error) {
	return &HomographyEstimator{maxIterations: 2000, confidence: 0.995}, nil
}

// EstimateHomography returns H with dst ~ H*src
func (estimator *HomographyEstimator) EstimateHomography(src, dst []tracking.Point, threshold float64) (tracking.Homography, error) {
	if len(src) != len(dst) {
		return tracking.Homography{}, errors.Errorf("point sets differ in size: %d vs %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return tracking.Homography{}, errors.Wrapf(tracking.ErrHomographyNotFound, "%d correspondences", len(src))
	}
	srcVector := gocv.NewPoint2fVectorFromPoints(toPoint2f(src))
	defer srcVector.Close()
	dstVector := gocv.NewPoint2fVectorFromPoints(toPoint2f(dst))
	defer dstVector.Close()
	srcMat := gocv.NewMatFromPoint2fVector(srcVector, true)
	defer srcMat.Close()
	dstMat := gocv.NewMatFromPoint2fVector(dstVector, true)
	defer dstMat.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(srcMat, &dstMat, gocv.HomograpyMethodRANSAC, threshold, &mask, estimator.maxIterations, estimator.confidence)
	defer h.Close()
	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 {
		return tracking.Homography{}, tracking.ErrHomographyNotFound
	}
	var out tracking.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r][c] = h.GetDoubleAt(r, c)
		}
	}
	return out, nil
}

// UDPSource decodes an RTP/UDP video stream through a GStreamer pipeline.
type UDPSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	seq     uint64
}

// OpenUDPSource starts receiving the stream described by cfg
func OpenUDPSource(cfg SourceConfig) (FrameSource, error) {
	pipeline, err := PipelineDescription(cfg)
	if err != nil {
		return nil, err
	}
	capture, err := gocv.OpenVideoCaptureWithAPI(pipeline, gocv.VideoCaptureGstreamer)
	if err != nil {
		return nil, errors.Wrapf(err, "open pipeline %q", pipeline)
	}
	return &UDPSource{capture: capture, mat: gocv.NewMat()}, nil
}

// Next blocks until a frame is decoded. It returns io.EOF once the stream ends.
func (source *UDPSource) Next(ctx context.Context) (tracking.Frame, error) {
	if err := ctx.Err(); err != nil {
		return tracking.Frame{}, err
	}
	if ok := source.capture.Read(&source.mat); !ok || source.mat.Empty() {
		return tracking.Frame{}, io.EOF
	}
	source.seq++
	return tracking.Frame{
		Data:      source.mat.ToBytes(),
		Width:     source.mat.Cols(),
		Height:    source.mat.Rows(),
		Channels:  source.mat.Channels(),
		Timestamp: time.Now(),
		Seq:       source.seq,
	}, nil
}

// Close stops the pipeline
func (source *UDPSource) Close() error {
	source.mat.Close()
	return source.capture.Close()
}

func toPoint2f(points []tracking.Point) []gocv.Point2f {
	out := make([]gocv.Point2f, len(points))
	for i, p := range points {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}

func descriptorsToMat(descriptors [][]float32) (gocv.Mat, error) {
	cols := len(descriptors[0])
	mat := gocv.NewMatWithSize(len(descriptors), cols, gocv.MatTypeCV32F)
	for r, row := range descriptors {
		if len(row) != cols {
			mat.Close()
			return gocv.Mat{}, errors.Errorf("descriptor %d has size %d, expected %d", r, len(row), cols)
		}
		for c, v := range row {
			mat.SetFloatAt(r, c, v)
		}
	}
	return mat, nil
}

func matToDescriptors(mat gocv.Mat) [][]float32 {
	if mat.Empty() {
		return nil
	}
	rows, cols := mat.Rows(), mat.Cols()
	out := make([][]float32, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]float32, cols)
		for c := 0; c < cols; c++ {
			out[r][c] = mat.GetFloatAt(r, c)
		}
	}
	return out
}
