package surface

import (
	"context"
	"log/slog"

	"github.com/LdDl/surface-tuio/config"
	"github.com/LdDl/surface-tuio/tracking"
)

// Applied counts the entries ApplyTrackingConfig registered
type Applied struct {
	Patterns int
	Pointers int
	Failed   int
}

// ApplyTrackingConfig replaces the content of registry with the elements of cfg. Every pattern's
// upload resource is published through uploader first and the returned id becomes its symbol.
// A failing entry is logged and skipped; only cancellation of ctx stops the whole pass.
func ApplyTrackingConfig(ctx context.Context, cfg *config.Tracking, registry *tracking.Registry, uploader Uploader, logger *slog.Logger) (Applied, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var applied Applied
	registry.ClearPatterns()

	for _, entry := range cfg.Patterns() {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if uploader != nil {
			uploadPath := cfg.ResolvePath(entry.Info.UploadResource())
			id, err := uploader.Upload(ctx, uploadPath)
			if err != nil {
				applied.Failed++
				logger.Error("can't upload pattern resource", "session_id", entry.Pattern.SessionID, "resource", uploadPath, "error", err)
				continue
			}
			entry.Pattern.Symbol.UUID = id
		}
		resource := cfg.ResolvePath(entry.Info.MatchingResource)
		if _, err := registry.LoadPattern(resource, entry.RegistryID(), cfg.MatchingScale(entry.Info)); err != nil {
			applied.Failed++
			logger.Error("can't load pattern", "session_id", entry.Pattern.SessionID, "resource", resource, "error", err)
			continue
		}
		applied.Patterns++
	}

	for _, entry := range cfg.Pointers() {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		resource := cfg.ResolvePath(entry.Info.MatchingResource)
		if _, err := registry.LoadPattern(resource, entry.RegistryID(), cfg.MatchingScale(entry.Info)); err != nil {
			applied.Failed++
			logger.Error("can't load pointer", "session_id", entry.Pointer.SessionID, "resource", resource, "error", err)
			continue
		}
		applied.Pointers++
	}
	logger.Info("tracking config applied", "path", cfg.Path(), "patterns", applied.Patterns, "pointers", applied.Pointers, "failed", applied.Failed)
	return applied, nil
}
