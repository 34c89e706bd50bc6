package config

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/surface-tuio/tuio"
)

const sampleTracking = `{
  "default_matching_scale": 0.2,
  "patterns": [
    {"type": "image", "data": {
      "tracking_info": {"matching_resource": "card.png", "varying_upload_resource": "card_hd.png", "fixed_resource_scale": [0.5, 2]},
      "text/plain": "hello"
    }},
    {"type": "pen", "data": {
      "tracking_info": {"matching_resource": "pen.png", "matching_scale": 0.4},
      "radius": 4.5,
      "color": "255,0,0"
    }},
    {"type": "image"},
    {"type": "laser", "data": {"tracking_info": {"matching_resource": "x.png"}}},
    {"type": "eraser", "data": {"size": 3}},
    {"type": "eraser", "data": {"tracking_info": {"matching_resource": "eraser.png"}, "size": 3}}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writePNG(t *testing.T, dir, name string, width, height int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, width, height))))
}

func TestLoadTracking(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tracking.json", sampleTracking)
	allocator := tuio.NewSessionAllocator()

	cfg, err := LoadTracking(path, allocator, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.DefaultMatchingScale())
	assert.Equal(t, dir, cfg.ResourceDir())
	require.Len(t, cfg.Patterns(), 1)
	require.Len(t, cfg.Pointers(), 2)

	card := cfg.Patterns()[0]
	assert.Equal(t, tuio.SessionID(0), card.Pattern.SessionID)
	assert.Equal(t, "0", card.RegistryID())
	assert.True(t, card.Info.HasFixedResourceScale())
	assert.Equal(t, -1.0, card.Info.MatchingScale)
	assert.Equal(t, 0.2, cfg.MatchingScale(card.Info))
	assert.Equal(t, tuio.DataList{{MimeType: "text/plain", Payload: "hello"}}, card.Pattern.Data)

	pen := cfg.Pointers()[0]
	assert.Equal(t, tuio.PointerTypePen, pen.Pointer.TypeID)
	assert.Equal(t, 4.5, pen.Pointer.Radius)
	assert.Equal(t, 0.4, cfg.MatchingScale(pen.Info))
	assert.Equal(t, tuio.DataList{{MimeType: "color", Payload: "255,0,0"}}, pen.Pointer.Data)

	eraser := cfg.Pointers()[1]
	assert.Equal(t, tuio.PointerTypeEraser, eraser.Pointer.TypeID)
	assert.Equal(t, tuio.DefaultPointerRadius, eraser.Pointer.Radius)
	assert.Equal(t, tuio.DataList{{MimeType: "size", Payload: "3"}}, eraser.Pointer.Data)

	assert.Equal(t, []string{
		filepath.Join(dir, "card.png"),
		filepath.Join(dir, "card_hd.png"),
		filepath.Join(dir, "pen.png"),
		filepath.Join(dir, "eraser.png"),
	}, cfg.ResourcePaths())

	found, ok := cfg.PointerByRegistryID(pen.RegistryID())
	assert.True(t, ok)
	assert.Same(t, pen, found)
	_, ok = cfg.PatternByRegistryID(pen.RegistryID())
	assert.False(t, ok)
}

func TestLoadTrackingEmptyPath(t *testing.T) {
	cfg, err := LoadTracking("", tuio.NewSessionAllocator(), nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Patterns())
	assert.Empty(t, cfg.Pointers())
}

func TestLoadTrackingMissingFile(t *testing.T) {
	_, err := LoadTracking(filepath.Join(t.TempDir(), "nope.json"), tuio.NewSessionAllocator(), nil)
	assert.Error(t, err)
	_, err = LoadTracking(t.TempDir(), tuio.NewSessionAllocator(), nil)
	assert.Error(t, err)
}

func TestLoadTrackingMissingRootKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tracking.json", `{"patterns": []}`)
	cfg, err := LoadTracking(path, tuio.NewSessionAllocator(), nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Patterns())
	assert.Zero(t, cfg.DefaultMatchingScale())
}

func TestMatchingScaleFallback(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tracking.json", `{"patterns": [], "default_matching_scale": 0}`)
	cfg, err := LoadTracking(path, tuio.NewSessionAllocator(), nil)
	require.NoError(t, err)
	info := TrackingInfo{MatchingScale: -1}
	assert.Zero(t, cfg.MatchingScale(info))

	cfg.SetFallbackMatchingScale(0.13)
	assert.Equal(t, 0.13, cfg.MatchingScale(info))
	assert.Equal(t, 0.5, cfg.MatchingScale(TrackingInfo{MatchingScale: 0.5}))

	path = writeFile(t, t.TempDir(), "tracking.json", `{"patterns": [], "default_matching_scale": 0.3}`)
	cfg, err = LoadTracking(path, tuio.NewSessionAllocator(), nil)
	require.NoError(t, err)
	cfg.SetFallbackMatchingScale(0.13)
	assert.Equal(t, 0.3, cfg.MatchingScale(info))
}

func TestImageResourceSize(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tracking.json", sampleTracking)
	writePNG(t, dir, "card_hd.png", 40, 30)
	cfg, err := LoadTracking(path, tuio.NewSessionAllocator(), nil)
	require.NoError(t, err)
	sid := cfg.Patterns()[0].Pattern.SessionID

	size, err := cfg.ImageResourceSize(sid)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{20, 60}, size)

	// cached: still served after the file is gone
	require.NoError(t, os.Remove(filepath.Join(dir, "card_hd.png")))
	size, err = cfg.ImageResourceSize(sid)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{20, 60}, size)

	_, err = cfg.ImageResourceSize(cfg.Pointers()[0].Pointer.SessionID)
	assert.True(t, errors.Is(err, ErrNotImagePattern))
}
