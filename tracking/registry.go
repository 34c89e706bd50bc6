package tracking

import (
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/LdDl/surface-tuio/metrics"
)

// Pattern is a registered reference image with its precomputed features.
type Pattern struct {
	ID       string
	Resource string
	Scale    float64
	Features Features
}

// Corners returns the four corners of the (scaled) pattern image
func (p *Pattern) Corners() []Point {
	return CornerPoints(p.Features.Width, p.Features.Height)
}

// Registry holds patterns in registration order. Reads may run concurrently with each other;
// loading must not overlap with a tracking cycle that reads the registry.
type Registry struct {
	mu        sync.RWMutex
	extractor FeatureExtractor
	order     []string
	patterns  map[string]*Pattern
	metrics   *metrics.Metrics
}

// NewRegistry creates an empty registry which computes features with extractor
func NewRegistry(extractor FeatureExtractor, m *metrics.Metrics) *Registry {
	return &Registry{
		extractor: extractor,
		patterns:  make(map[string]*Pattern),
		metrics:   m,
	}
}

// LoadPattern computes features of the image at resource scaled by scale and registers them under id.
// An empty id defaults to the base name of resource. Loading an existing id replaces it in place.
func (registry *Registry) LoadPattern(resource, id string, scale float64) (*Pattern, error) {
	if id == "" {
		id = filepath.Base(resource)
	}
	if scale <= 0 {
		scale = 1.0
	}
	if registry.extractor == nil {
		return nil, errors.Wrapf(ErrUnavailable, "load %s: no feature extractor", resource)
	}
	features, err := registry.extractor.Load(resource, scale)
	if err != nil {
		return nil, errors.Wrapf(err, "load pattern %s from %s", id, resource)
	}
	p := &Pattern{
		ID:       id,
		Resource: resource,
		Scale:    scale,
		Features: features,
	}
	registry.Add(p)
	return p, nil
}

// LoadPatterns loads every resource. ids are used only when there is one per resource.
// Every resource is tried; the first failure is returned.
func (registry *Registry) LoadPatterns(resources, ids []string, scale float64) error {
	if len(ids) != len(resources) {
		ids = make([]string, len(resources))
	}
	var first error
	for i, resource := range resources {
		if _, err := registry.LoadPattern(resource, ids[i], scale); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Add registers a pattern with precomputed features
func (registry *Registry) Add(p *Pattern) {
	registry.mu.Lock()
	if _, ok := registry.patterns[p.ID]; !ok {
		registry.order = append(registry.order, p.ID)
	}
	registry.patterns[p.ID] = p
	n := len(registry.order)
	registry.mu.Unlock()
	registry.metrics.SetRegisteredPatterns(n)
}

// ClearPatterns removes every pattern
func (registry *Registry) ClearPatterns() {
	registry.mu.Lock()
	registry.order = nil
	registry.patterns = make(map[string]*Pattern)
	registry.mu.Unlock()
	registry.metrics.SetRegisteredPatterns(0)
}

// Pattern returns pattern with given id
func (registry *Registry) Pattern(id string) (*Pattern, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	p, ok := registry.patterns[id]
	return p, ok
}

// Patterns returns every pattern in registration order
func (registry *Registry) Patterns() []*Pattern {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]*Pattern, len(registry.order))
	for i, id := range registry.order {
		out[i] = registry.patterns[id]
	}
	return out
}

// Len returns number of registered patterns
func (registry *Registry) Len() int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return len(registry.order)
}
