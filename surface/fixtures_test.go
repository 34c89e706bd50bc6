package surface

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/surface-tuio/config"
	"github.com/LdDl/surface-tuio/tracking"
	"github.com/LdDl/surface-tuio/tuio"
)

const trackingJSON = `{
  "default_matching_scale": 0.5,
  "patterns": [
    {"type": "image", "data": {"tracking_info": {"matching_resource": "card.png", "fixed_resource_scale": [2, 1]}}},
    {"type": "image", "data": {"tracking_info": {"matching_resource": "poster.png", "matching_scale": 0.25}}},
    {"type": "image", "data": {"tracking_info": {"matching_resource": "missing.png"}}},
    {"type": "pen", "data": {"tracking_info": {"matching_resource": "pen.png"}, "radius": 3}}
  ]
}`

// fakeExtractor pretends every image is 100x50 pixels before scaling. Files named missing* fail.
type fakeExtractor struct{}

func (fakeExtractor) Extract(frame tracking.Frame) (tracking.Features, error) {
	return tracking.Features{Width: frame.Width, Height: frame.Height}, nil
}

func (fakeExtractor) Load(path string, scale float64) (tracking.Features, error) {
	if strings.HasPrefix(filepath.Base(path), "missing") {
		return tracking.Features{}, errors.Errorf("can't read image %s", path)
	}
	return tracking.Features{
		Keypoints:   []tracking.Point{tracking.NewPoint(0, 0)},
		Descriptors: [][]float32{{1}},
		Width:       int(100 * scale),
		Height:      int(50 * scale),
	}, nil
}

// fakeUploader names uploads after the file and fails for the files in fail
type fakeUploader struct {
	mu       sync.Mutex
	fail     map[string]bool
	uploaded []string
}

func (uploader *fakeUploader) Upload(_ context.Context, path string) (string, error) {
	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	base := filepath.Base(path)
	if uploader.fail[base] {
		return "", errors.New("upload refused")
	}
	uploader.uploaded = append(uploader.uploaded, base)
	return "uuid-" + base, nil
}

func writePNG(t *testing.T, dir, name string, width, height int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, width, height))))
}

func loadTracking(t *testing.T, content string) *config.Tracking {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tracking.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	writePNG(t, dir, "card.png", 40, 30)
	cfg, err := config.LoadTracking(path, tuio.NewSessionAllocator(), nil)
	require.NoError(t, err)
	return cfg
}
