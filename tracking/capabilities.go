package tracking

import (
	"time"

	"github.com/pkg/errors"
)

// ErrUnavailable is returned by capability constructors compiled without their backend.
var ErrUnavailable = errors.New("capability is not available in this build")

// ErrHomographyNotFound is returned when no homography explains the matches.
var ErrHomographyNotFound = errors.New("homography not found")

// Frame is one decoded video frame. Data holds Height rows of Width*Channels bytes (BGR order for 3 channels).
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Channels  int
	Timestamp time.Time
	Seq       uint64
}

// IsEmpty returns true if frame has no pixels
func (frame Frame) IsEmpty() bool {
	return frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) == 0
}

// Features are keypoints with one descriptor per keypoint, extracted from an image of given size.
type Features struct {
	Keypoints   []Point
	Descriptors [][]float32
	Width       int
	Height      int
}

// IsEmpty returns true if there are no descriptors
func (f Features) IsEmpty() bool {
	return len(f.Descriptors) == 0
}

// DMatch is a candidate pair: descriptor QueryIdx of the query set and TrainIdx of the train set.
type DMatch struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// FeatureExtractor produces keypoints and descriptors.
type FeatureExtractor interface {
	// Extract computes features of a frame
	Extract(frame Frame) (Features, error)
	// Load reads an image file, resizes it by scale and computes its features
	Load(path string, scale float64) (Features, error)
}

// Matcher finds k nearest train descriptors for each query descriptor, best first.
type Matcher interface {
	KnnMatch(query, train [][]float32, k int) ([][]DMatch, error)
	// Clone returns a matcher which can be used concurrently with the receiver
	Clone() Matcher
}

// HomographyEstimator robustly fits a homography mapping src onto dst.
// Implementations return an error wrapping ErrHomographyNotFound when the fit fails.
type HomographyEstimator interface {
	EstimateHomography(src, dst []Point, threshold float64) (Homography, error)
}
