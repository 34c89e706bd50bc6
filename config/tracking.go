// Package config reads the tracking configuration (which images and pointers to track and how)
// and the service configuration of the binaries.
package config

import (
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/LdDl/surface-tuio/tuio"
)

// Element types of the tracking configuration.
const (
	TypeImage   = "image"
	TypePen     = "pen"
	TypePointer = "pointer"
	TypeEraser  = "eraser"
)

// ErrNotImagePattern is returned when a session id doesn't reference a configured image pattern.
var ErrNotImagePattern = errors.New("session id does not reference an image pattern")

// TrackingInfo tells how an element is matched and what is uploaded for it.
type TrackingInfo struct {
	MatchingResource      string    `json:"matching_resource"`
	VaryingUploadResource string    `json:"varying_upload_resource"`
	MatchingScale         float64   `json:"matching_scale"`
	FixedResourceScale    []float64 `json:"fixed_resource_scale"`
}

// HasFixedResourceScale returns true if published size is derived from the resource image
func (info TrackingInfo) HasFixedResourceScale() bool {
	return len(info.FixedResourceScale) == 2
}

// UploadResource returns the file whose content identifies the element
func (info TrackingInfo) UploadResource() string {
	if info.VaryingUploadResource != "" {
		return info.VaryingUploadResource
	}
	return info.MatchingResource
}

// PatternEntry is a configured image pattern.
type PatternEntry struct {
	Pattern *tuio.ImagePattern
	Info    TrackingInfo
}

// RegistryID is the id the pattern is registered under for matching
func (entry *PatternEntry) RegistryID() string {
	return registryID(entry.Pattern.SessionID)
}

// PointerEntry is a configured pen, pointer or eraser.
type PointerEntry struct {
	Pointer *tuio.Pointer
	Info    TrackingInfo
}

// RegistryID is the id the pointer is registered under for matching
func (entry *PointerEntry) RegistryID() string {
	return registryID(entry.Pointer.SessionID)
}

func registryID(sid tuio.SessionID) string {
	return strconv.Itoa(int(sid))
}

// Tracking is a parsed tracking configuration. Resource paths are relative to the directory of the file.
type Tracking struct {
	path                 string
	resourceDir          string
	defaultMatchingScale float64
	fallbackScale        float64
	patterns             []*PatternEntry
	pointers             []*PointerEntry

	mu    sync.Mutex
	sizes map[tuio.SessionID][2]float64
}

type rawTracking struct {
	Patterns             []json.RawMessage `json:"patterns"`
	DefaultMatchingScale *float64          `json:"default_matching_scale"`
}

type rawElement struct {
	Type *string                    `json:"type"`
	Data map[string]json.RawMessage `json:"data"`
}

// LoadTracking parses the configuration at path. Every element gets a session id from allocator.
// An empty path gives an empty configuration; a path which is not a file is an error.
// Entries which can't be parsed are logged and skipped.
func LoadTracking(path string, allocator tuio.Allocator, logger *slog.Logger) (*Tracking, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := &Tracking{
		path:        path,
		resourceDir: filepath.Dir(path),
		sizes:       make(map[tuio.SessionID][2]float64),
	}
	if path == "" {
		return cfg, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't read tracking config")
	}
	if info.IsDir() {
		return nil, errors.Errorf("can't read tracking config: %s is no file", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't read tracking config")
	}
	var raw rawTracking
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, errors.Wrapf(err, "parse tracking config %s", path)
	}
	if raw.Patterns == nil || raw.DefaultMatchingScale == nil {
		logger.Warn("tracking config lacks 'patterns' or 'default_matching_scale', nothing to track", "path", path)
		return cfg, nil
	}
	cfg.defaultMatchingScale = *raw.DefaultMatchingScale
	for i, desc := range raw.Patterns {
		if err := cfg.addElement(desc, allocator); err != nil {
			logger.Error("skipping tracking config entry", "path", path, "index", i, "error", err)
		}
	}
	return cfg, nil
}

func (cfg *Tracking) addElement(desc json.RawMessage, allocator tuio.Allocator) error {
	var elem rawElement
	if err := json.Unmarshal(desc, &elem); err != nil {
		return errors.Wrap(err, "malformed entry")
	}
	if elem.Type == nil || elem.Data == nil {
		return errors.New("entry needs 'type' and 'data'")
	}
	rawInfo, ok := elem.Data["tracking_info"]
	if !ok {
		return errors.Errorf("%s entry has no 'tracking_info'", *elem.Type)
	}
	info := TrackingInfo{MatchingScale: -1.0}
	if err := json.Unmarshal(rawInfo, &info); err != nil {
		return errors.Wrap(err, "malformed 'tracking_info'")
	}
	if info.MatchingResource == "" {
		return errors.New("'tracking_info' has no 'matching_resource'")
	}
	captured := map[string]bool{"tracking_info": true}

	switch *elem.Type {
	case TypeImage:
		pattern := tuio.NewImagePattern(allocator.Next(), tuio.UnsetID)
		pattern.Data = miscData(elem.Data, captured)
		cfg.patterns = append(cfg.patterns, &PatternEntry{Pattern: pattern, Info: info})
	case TypePen, TypePointer, TypeEraser:
		var radius *float64
		if rawRadius, ok := elem.Data["radius"]; ok {
			var r float64
			if err := json.Unmarshal(rawRadius, &r); err != nil {
				return errors.Wrap(err, "malformed 'radius'")
			}
			radius = &r
			captured["radius"] = true
		}
		pointer := tuio.NewPointer(allocator.Next(), pointerType(*elem.Type))
		if radius != nil {
			pointer.Radius = *radius
		}
		pointer.Data = miscData(elem.Data, captured)
		cfg.pointers = append(cfg.pointers, &PointerEntry{Pointer: pointer, Info: info})
	default:
		return errors.Errorf("unknown element type %q", *elem.Type)
	}
	return nil
}

func pointerType(kind string) int32 {
	switch kind {
	case TypePen:
		return tuio.PointerTypePen
	case TypeEraser:
		return tuio.PointerTypeEraser
	default:
		return tuio.PointerTypePointer
	}
}

// miscData turns every uncaptured data key into a datum with the key as mime type.
// String values are used as is, anything else as its JSON text.
func miscData(data map[string]json.RawMessage, captured map[string]bool) tuio.DataList {
	keys := make([]string, 0, len(data))
	for k := range data {
		if !captured[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out tuio.DataList
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(data[k], &s); err != nil {
			s = string(data[k])
		}
		out = append(out, tuio.Data{MimeType: k, Payload: s})
	}
	return out
}

// Path returns the file the configuration was read from
func (cfg *Tracking) Path() string {
	return cfg.path
}

// ResourceDir returns the directory resources are resolved against
func (cfg *Tracking) ResourceDir() string {
	return cfg.resourceDir
}

// ResolvePath returns the full path of a resource file name
func (cfg *Tracking) ResolvePath(resource string) string {
	if resource == "" || filepath.IsAbs(resource) {
		return resource
	}
	return filepath.Join(cfg.resourceDir, resource)
}

// DefaultMatchingScale returns the scale used by entries without their own
func (cfg *Tracking) DefaultMatchingScale() float64 {
	return cfg.defaultMatchingScale
}

// SetFallbackMatchingScale sets the scale used when the file's default_matching_scale is not positive
func (cfg *Tracking) SetFallbackMatchingScale(scale float64) {
	cfg.fallbackScale = scale
}

// MatchingScale returns the scale info asks for, falling back to the file default
// and then to the fallback scale
func (cfg *Tracking) MatchingScale(info TrackingInfo) float64 {
	if info.MatchingScale > 0 {
		return info.MatchingScale
	}
	if cfg.defaultMatchingScale > 0 {
		return cfg.defaultMatchingScale
	}
	return cfg.fallbackScale
}

// Patterns returns image patterns in file order
func (cfg *Tracking) Patterns() []*PatternEntry {
	return cfg.patterns
}

// Pointers returns pointers in file order
func (cfg *Tracking) Pointers() []*PointerEntry {
	return cfg.pointers
}

// PatternByRegistryID finds a pattern by the id it is matched under
func (cfg *Tracking) PatternByRegistryID(id string) (*PatternEntry, bool) {
	for _, entry := range cfg.patterns {
		if entry.RegistryID() == id {
			return entry, true
		}
	}
	return nil, false
}

// PointerByRegistryID finds a pointer by the id it is matched under
func (cfg *Tracking) PointerByRegistryID(id string) (*PointerEntry, bool) {
	for _, entry := range cfg.pointers {
		if entry.RegistryID() == id {
			return entry, true
		}
	}
	return nil, false
}

// ResourcePaths lists every referenced file: matching and upload resources of patterns,
// matching resources of pointers
func (cfg *Tracking) ResourcePaths() []string {
	var paths []string
	for _, entry := range cfg.patterns {
		paths = append(paths, cfg.ResolvePath(entry.Info.MatchingResource))
		if entry.Info.VaryingUploadResource != "" {
			paths = append(paths, cfg.ResolvePath(entry.Info.VaryingUploadResource))
		}
	}
	for _, entry := range cfg.pointers {
		paths = append(paths, cfg.ResolvePath(entry.Info.MatchingResource))
	}
	return paths
}

// ImageResourceSize returns [width, height] of the pattern's upload resource multiplied by
// its fixed resource scale. Sizes are cached per session id.
func (cfg *Tracking) ImageResourceSize(sid tuio.SessionID) ([2]float64, error) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	if size, ok := cfg.sizes[sid]; ok {
		return size, nil
	}
	var entry *PatternEntry
	for _, e := range cfg.patterns {
		if e.Pattern.SessionID == sid {
			entry = e
			break
		}
	}
	if entry == nil {
		return [2]float64{}, errors.Wrapf(ErrNotImagePattern, "session %d", sid)
	}
	resource := cfg.ResolvePath(entry.Info.UploadResource())
	width, height, err := imageSize(resource)
	if err != nil {
		return [2]float64{}, err
	}
	size := [2]float64{float64(width), float64(height)}
	if entry.Info.HasFixedResourceScale() {
		size[0] *= entry.Info.FixedResourceScale[0]
		size[1] *= entry.Info.FixedResourceScale[1]
	}
	cfg.sizes[sid] = size
	return size, nil
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrap(err, "open image resource")
	}
	defer f.Close()
	imgCfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "decode image resource %s", path)
	}
	return imgCfg.Width, imgCfg.Height, nil
}
