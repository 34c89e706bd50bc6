package surface

import (
	"context"
	"io"
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"github.com/LdDl/surface-tuio/config"
	"github.com/LdDl/surface-tuio/metrics"
	"github.com/LdDl/surface-tuio/tracking"
	"github.com/LdDl/surface-tuio/tuio"
)

// FrameSource yields frames until io.EOF
type FrameSource interface {
	Next(ctx context.Context) (tracking.Frame, error)
}

// Locator finds registered patterns in a frame. *tracking.Coordinator implements it.
type Locator interface {
	TrackConcurrent(frame tracking.Frame, patterns []*tracking.Pattern) ([]tracking.Result, error)
}

// Publisher sends tracked elements to the surface server
type Publisher interface {
	SendPatterns(patterns []*tuio.ImagePattern) error
	SendPointers(pointers []*tuio.Pointer) error
}

// TrackerConfig configures a Tracker
type TrackerConfig struct {
	Tracking    *config.Tracking
	Registry    *tracking.Registry
	Coordinator Locator
	// Smoother is optional
	Smoother  *tracking.Smoother
	Source    FrameSource
	Publisher Publisher
	// Uploader is used when a new tracking configuration is applied on Reload
	Uploader Uploader
	UserID   int32
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Tracker runs the frame loop: track every registered element, map results onto the configured
// patterns and pointers, publish what was found.
type Tracker struct {
	tracking    *config.Tracking
	registry    *tracking.Registry
	coordinator Locator
	smoother    *tracking.Smoother
	source      FrameSource
	publisher   Publisher
	uploader    Uploader
	userID      int32
	reload      chan *config.Tracking
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewTracker creates a tracker. The configuration is expected to be applied to the registry already.
func NewTracker(cfg TrackerConfig) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		tracking:    cfg.Tracking,
		registry:    cfg.Registry,
		coordinator: cfg.Coordinator,
		smoother:    cfg.Smoother,
		source:      cfg.Source,
		publisher:   cfg.Publisher,
		uploader:    cfg.Uploader,
		userID:      cfg.UserID,
		reload:      make(chan *config.Tracking, 1),
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Reload schedules cfg to be applied between two frames. A pending configuration is replaced.
func (tracker *Tracker) Reload(cfg *config.Tracking) {
	for {
		select {
		case tracker.reload <- cfg:
			return
		default:
		}
		select {
		case <-tracker.reload:
		default:
		}
	}
}

// Run processes frames until the source ends (nil is returned) or ctx is cancelled.
func (tracker *Tracker) Run(ctx context.Context) error {
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tracker.applyPendingReload(ctx)
		frame, err := tracker.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				tracker.logger.Info("frame source ended")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "next frame")
		}
		if first {
			tracker.logger.Info("tracking initialized", "frame_width", frame.Width, "frame_height", frame.Height)
			first = false
		}
		patterns, pointers, err := tracker.ProcessFrame(frame)
		if err != nil {
			tracker.logger.Warn("frame skipped", "seq", frame.Seq, "error", err)
			continue
		}
		if err := tracker.publisher.SendPatterns(patterns); err != nil {
			tracker.logger.Warn("can't send patterns", "error", err)
		}
		if err := tracker.publisher.SendPointers(pointers); err != nil {
			tracker.logger.Warn("can't send pointers", "error", err)
		}
	}
}

func (tracker *Tracker) applyPendingReload(ctx context.Context) {
	select {
	case cfg := <-tracker.reload:
		if _, err := ApplyTrackingConfig(ctx, cfg, tracker.registry, tracker.uploader, tracker.logger); err != nil {
			tracker.logger.Warn("tracking config reload interrupted", "error", err)
		}
		tracker.tracking = cfg
		if tracker.smoother != nil {
			tracker.smoother.Reset()
		}
	default:
	}
}

// ProcessFrame tracks one frame and returns the elements to publish, each at most once.
// Failed worker partitions are logged; results of the others are still used.
func (tracker *Tracker) ProcessFrame(frame tracking.Frame) ([]*tuio.ImagePattern, []*tuio.Pointer, error) {
	results, err := tracker.coordinator.TrackConcurrent(frame, tracker.registry.Patterns())
	if err != nil {
		var cycleErr *tracking.CycleError
		if !errors.As(err, &cycleErr) {
			return nil, nil, err
		}
	}
	if tracker.smoother != nil {
		smoothed, err := tracker.smoother.Smooth(results)
		if err != nil {
			tracker.logger.Warn("smoothing failed, using raw results", "error", err)
		} else {
			results = smoothed
		}
	}

	h := float64(frame.Height)
	w := float64(frame.Width)
	var patterns []*tuio.ImagePattern
	var pointers []*tuio.Pointer
	seenPatterns := make(map[tuio.PatternKey]bool)
	seenPointers := make(map[tuio.PointerKey]bool)
	for _, res := range results {
		if entry, ok := tracker.tracking.PatternByRegistryID(res.PatternID); ok {
			entry.Pattern.Bounds = tracker.patternBounds(entry, res.Bounds, h)
			entry.Pattern.UserID = tracker.userID
			if key := entry.Pattern.Key(); !seenPatterns[key] {
				seenPatterns[key] = true
				patterns = append(patterns, entry.Pattern)
			}
			continue
		}
		if entry, ok := tracker.tracking.PointerByRegistryID(res.PatternID); ok {
			entry.Pointer.UserID = tracker.userID
			scaled := res.Bounds.Scaled(h, h)
			entry.Pointer.X = scaled.X / w
			entry.Pointer.Y = scaled.Y / h
			if key := entry.Pointer.Key(); !seenPointers[key] {
				seenPointers[key] = true
				pointers = append(pointers, entry.Pointer)
			}
		}
	}
	tracker.metrics.AddResults(metrics.KindPattern, len(patterns))
	tracker.metrics.AddResults(metrics.KindPointer, len(pointers))
	return patterns, pointers, nil
}

// patternBounds replaces the tracked size by the configured resource size when the entry asks for it
func (tracker *Tracker) patternBounds(entry *config.PatternEntry, bounds tuio.Bounds, h float64) tuio.Bounds {
	if !entry.Info.HasFixedResourceScale() {
		return bounds
	}
	size, err := tracker.tracking.ImageResourceSize(entry.Pattern.SessionID)
	if err != nil {
		tracker.logger.Warn("can't read resource size, keeping tracked size", "session_id", entry.Pattern.SessionID, "error", err)
		return bounds
	}
	scaled := bounds.Scaled(h, h)
	scaled.Width = math.Trunc(math.Max(size[0], size[1]))
	scaled.Height = math.Trunc(math.Min(size[0], size[1]))
	return scaled.Normalized(h, h)
}
