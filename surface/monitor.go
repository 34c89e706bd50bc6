package surface

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LdDl/surface-tuio/metrics"
	"github.com/LdDl/surface-tuio/tuio"
)

// DefaultDrainInterval is the period between two drain cycles of a Monitor.
const DefaultDrainInterval = 20 * time.Millisecond

// MonitorConfig configures a Monitor
type MonitorConfig struct {
	Store    *tuio.Store
	Queues   *tuio.Queues
	Interval time.Duration
	// Hub and Images are optional
	Hub    *Hub
	Images *ImageCache
	Logger *slog.Logger
}

// Monitor periodically drains received updates into the store, logs what changed and keeps a
// snapshot of the live elements which is safe to read from other goroutines.
type Monitor struct {
	store    *tuio.Store
	queues   *tuio.Queues
	interval time.Duration
	hub      *Hub
	images   *ImageCache
	logger   *slog.Logger

	mu       sync.RWMutex
	patterns []PatternView
	pointers []PointerView
}

// NewMonitor creates a monitor
func NewMonitor(cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:    cfg.Store,
		queues:   cfg.Queues,
		interval: interval,
		hub:      cfg.Hub,
		images:   cfg.Images,
		logger:   logger,
	}
}

// Run drains every interval until ctx is cancelled
func (monitor *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(monitor.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			monitor.Cycle()
		}
	}
}

// Cycle runs one drain and publishes its changes
func (monitor *Monitor) Cycle() tuio.ChangeLog {
	log := monitor.store.Drain(monitor.queues)
	if log.IsEmpty() {
		return log
	}

	var events []Event
	for _, pattern := range monitor.store.Patterns(log.ChangedPatterns()...) {
		view := NewPatternView(pattern)
		monitor.logger.Debug("pattern updated", "key", view.Key, "uuid", view.Symbol.UUID,
			"x", view.Bounds.X, "y", view.Bounds.Y, "angle", view.Bounds.Angle)
		events = append(events, Event{Kind: metrics.KindPattern, Action: ActionUpdate, Key: view.Key, Pattern: &view})
	}
	for _, pointer := range monitor.store.Pointers(log.ChangedPointers()...) {
		view := NewPointerView(pointer)
		monitor.logger.Debug("pointer updated", "key", view.Key, "type_id", view.TypeID, "x", view.X, "y", view.Y)
		events = append(events, Event{Kind: metrics.KindPointer, Action: ActionUpdate, Key: view.Key, Pointer: &view})
	}
	for _, key := range log.EvictedPatterns {
		monitor.logger.Info("pattern evicted", "key", key.String())
		events = append(events, Event{Kind: metrics.KindPattern, Action: ActionEvict, Key: key.String()})
	}
	for _, key := range log.EvictedPointers {
		monitor.logger.Info("pointer evicted", "key", key.String())
		events = append(events, Event{Kind: metrics.KindPointer, Action: ActionEvict, Key: key.String()})
	}

	if monitor.images != nil {
		for _, pattern := range monitor.store.Patterns(log.Symbols...) {
			monitor.images.Request(pattern.Symbol.UUID)
		}
	}
	monitor.refreshSnapshot()
	if monitor.hub != nil {
		monitor.hub.Publish(events...)
	}
	return log
}

func (monitor *Monitor) refreshSnapshot() {
	patterns := monitor.store.Patterns()
	pointers := monitor.store.Pointers()
	patternViews := make([]PatternView, len(patterns))
	for i, p := range patterns {
		patternViews[i] = NewPatternView(p)
	}
	pointerViews := make([]PointerView, len(pointers))
	for i, p := range pointers {
		pointerViews[i] = NewPointerView(p)
	}
	monitor.mu.Lock()
	monitor.patterns = patternViews
	monitor.pointers = pointerViews
	monitor.mu.Unlock()
}

// Patterns returns the live patterns as of the last cycle
func (monitor *Monitor) Patterns() []PatternView {
	monitor.mu.RLock()
	defer monitor.mu.RUnlock()
	out := make([]PatternView, len(monitor.patterns))
	copy(out, monitor.patterns)
	return out
}

// Pointers returns the live pointers as of the last cycle
func (monitor *Monitor) Pointers() []PointerView {
	monitor.mu.RLock()
	defer monitor.mu.RUnlock()
	out := make([]PointerView, len(monitor.pointers))
	copy(out, monitor.pointers)
	return out
}
