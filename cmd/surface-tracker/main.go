// Command surface-tracker receives a video stream of the table surface, tracks the configured
// image patterns and pointers and sends them as TUIO 2.0 over OSC/UDP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/LdDl/surface-tuio/config"
	"github.com/LdDl/surface-tuio/discovery"
	"github.com/LdDl/surface-tuio/internal/logging"
	"github.com/LdDl/surface-tuio/metrics"
	"github.com/LdDl/surface-tuio/opencv"
	"github.com/LdDl/surface-tuio/surface"
	"github.com/LdDl/surface-tuio/tracking"
	"github.com/LdDl/surface-tuio/tuio"
)

const discoveryTimeout = 5 * time.Second

var (
	configPath     = flag.String("config", "", "Path to service configuration (YAML)")
	patternsConfig = flag.String("patterns_config", "", "Path to tracking configuration (JSON)")
	patternScale   = flag.Float64("pattern_scale", 0.13, "Matching scale used when the tracking config has no positive default")
	serverIP       = flag.String("server_ip", "0.0.0.0", "TUIO receiver and image server host, 'auto' for mDNS lookup")
	tuioPort       = flag.Int("tuio_port", 5001, "TUIO receiver port")
	framePort      = flag.Int("frame_port", 6666, "UDP port of the video stream")
	frameWidth     = flag.Int("frame_width", 640, "Width frames are scaled to, 0 keeps the stream size")
	frameProtocol  = flag.String("frame_protocol", "jpeg", "Video stream payload: jpeg, vp8, vp9, mp4, h264, h265")
	userID         = flag.Int("user_id", -1, "User id of published elements")
	workers        = flag.Int("workers", 4, "Tracking workers")
	logFormat      = flag.String("log-format", "text", "Log format: text or json")
	logLevel       = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		slog.Error("can't create logger", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration", "error", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("surface tracker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("surface tracker stopped")
}

// loadConfig reads the YAML file and lets explicitly given flags override it
func loadConfig() (config.Service, error) {
	cfg, err := config.LoadService(*configPath)
	if err != nil {
		return config.Service{}, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "patterns_config":
			cfg.PatternsConfig = *patternsConfig
		case "pattern_scale":
			cfg.PatternScale = *patternScale
		case "server_ip":
			cfg.ServerIP = *serverIP
		case "tuio_port":
			cfg.TUIOPort = *tuioPort
		case "frame_port":
			cfg.FramePort = *framePort
		case "frame_width":
			cfg.FrameWidth = *frameWidth
		case "frame_protocol":
			cfg.FrameProtocol = *frameProtocol
		case "user_id":
			cfg.UserID = int32(*userID)
		case "workers":
			cfg.Workers = *workers
		}
	})
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Service, logger *slog.Logger) error {
	var m *metrics.Metrics
	reg := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
	}

	host, port, err := resolveServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	extractor, err := opencv.NewSIFTExtractor()
	if err != nil {
		return errors.Wrap(err, "feature extractor")
	}
	newEngine, err := engineFactory(cfg)
	if err != nil {
		return err
	}
	registry := tracking.NewRegistry(extractor, m)
	allocator := tuio.NewSessionAllocator()
	trackingCfg, err := config.LoadTracking(cfg.PatternsConfig, allocator, logger)
	if err != nil {
		return err
	}
	trackingCfg.SetFallbackMatchingScale(cfg.PatternScale)
	var uploader surface.Uploader = surface.NewLocalUploader()
	if cfg.Upload.Mode == config.UploadHTTP {
		uploader = surface.NewHTTPUploader(host, cfg.Upload.HTTPPort, cfg.Upload.Timeout)
	}
	if _, err := surface.ApplyTrackingConfig(ctx, trackingCfg, registry, uploader, logger); err != nil {
		return err
	}

	sender, err := tuio.NewUDPSender(host, port, m, logger)
	if err != nil {
		return err
	}
	defer sender.Close()

	source, err := opencv.OpenUDPSource(opencv.SourceConfig{Port: cfg.FramePort, Protocol: cfg.FrameProtocol, Width: cfg.FrameWidth})
	if err != nil {
		return errors.Wrap(err, "video source")
	}
	defer source.Close()

	coordinator := tracking.NewCoordinator(tracking.CoordinatorConfig{
		Workers:   cfg.Workers,
		Extractor: extractor,
		NewEngine: newEngine,
		Metrics:   m,
		Logger:    logger,
	})
	defer coordinator.Close()

	var smoother *tracking.Smoother
	if cfg.Smoothing {
		smoother = tracking.NewSmootherDefault()
	}
	tracker := surface.NewTracker(surface.TrackerConfig{
		Tracking:    trackingCfg,
		Registry:    registry,
		Coordinator: coordinator,
		Smoother:    smoother,
		Source:      source,
		Publisher:   sender,
		Uploader:    uploader,
		UserID:      cfg.UserID,
		Metrics:     m,
		Logger:      logger,
	})
	logger.Info("surface tracker started",
		"server", host, "tuio_port", port, "frame_port", cfg.FramePort, "protocol", cfg.FrameProtocol,
		"workers", coordinator.Workers(), "patterns", registry.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := tracker.Run(gctx)
		if err == nil {
			// end of stream stops the other goroutines
			return context.Canceled
		}
		return err
	})
	g.Go(func() error {
		return reloadOnHangup(gctx, cfg, allocator, tracker, logger)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return surface.Serve(gctx, cfg.MetricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)
		})
	}
	return g.Wait()
}

func resolveServer(ctx context.Context, cfg config.Service, logger *slog.Logger) (string, int, error) {
	if cfg.ServerIP != config.AutoServerIP {
		return cfg.ServerIP, cfg.TUIOPort, nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	endpoint, err := discovery.Lookup(lookupCtx)
	if err != nil {
		return "", 0, errors.Wrap(err, "discover tuio receiver")
	}
	logger.Info("tuio receiver discovered", "instance", endpoint.Instance, "address", endpoint.Address())
	return endpoint.Host, endpoint.Port, nil
}

func engineFactory(cfg config.Service) (tracking.EngineFactory, error) {
	var matcher tracking.Matcher = tracking.NewBruteForceMatcher()
	if cfg.Matcher == config.BackendOpenCV {
		flann, err := opencv.NewFlannMatcher()
		if err != nil {
			return nil, errors.Wrap(err, "flann matcher")
		}
		matcher = flann
	}
	var estimator tracking.HomographyEstimator = tracking.NewRANSACEstimatorDefault()
	if cfg.Estimator == config.BackendOpenCV {
		cvEstimator, err := opencv.NewHomographyEstimator()
		if err != nil {
			return nil, errors.Wrap(err, "homography estimator")
		}
		estimator = cvEstimator
	}
	return func() *tracking.Engine {
		return tracking.NewEngine(matcher.Clone(), estimator)
	}, nil
}

// reloadOnHangup re-reads the tracking configuration on SIGHUP
func reloadOnHangup(ctx context.Context, cfg config.Service, allocator tuio.Allocator, tracker *surface.Tracker, logger *slog.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hup:
			next, err := config.LoadTracking(cfg.PatternsConfig, allocator, logger)
			if err != nil {
				logger.Error("tracking config reload failed", "error", err)
				continue
			}
			next.SetFallbackMatchingScale(cfg.PatternScale)
			logger.Info("tracking config reload scheduled", "path", cfg.PatternsConfig)
			tracker.Reload(next)
		}
	}
}
