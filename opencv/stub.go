//go:build !opencv

package opencv

import (
	"github.com/pkg/errors"

	"github.com/LdDl/surface-tuio/tracking"
)

var errNoOpenCV = errors.Wrap(tracking.ErrUnavailable, "built without the opencv tag")

// Available reports whether the OpenCV backed capabilities were compiled in
func Available() bool {
	return false
}

// NewSIFTExtractor is unavailable without OpenCV
func NewSIFTExtractor() (tracking.FeatureExtractor, error) {
	return nil, errNoOpenCV
}

// NewFlannMatcher is unavailable without OpenCV
func NewFlannMatcher() (tracking.Matcher, error) {
	return nil, errNoOpenCV
}

// NewHomographyEstimator is unavailable without OpenCV
func NewHomographyEstimator() (tracking.HomographyEstimator, error) {
	return nil, errNoOpenCV
}

// OpenUDPSource validates cfg and fails: frames can't be decoded without OpenCV
func OpenUDPSource(cfg SourceConfig) (FrameSource, error) {
	if _, err := PipelineDescription(cfg); err != nil {
		return nil, err
	}
	return nil, errNoOpenCV
}
