// Command tuio-monitor receives TUIO 2.0 over OSC/UDP, keeps the live elements and exposes them
// over HTTP as JSON and as a websocket change stream.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/LdDl/surface-tuio/config"
	"github.com/LdDl/surface-tuio/discovery"
	"github.com/LdDl/surface-tuio/internal/logging"
	"github.com/LdDl/surface-tuio/metrics"
	"github.com/LdDl/surface-tuio/surface"
	"github.com/LdDl/surface-tuio/tuio"
)

var (
	configPath  = flag.String("config", "", "Path to service configuration (YAML)")
	listenAddr  = flag.String("listen", "0.0.0.0:5001", "UDP address TUIO is received on")
	httpAddr    = flag.String("http", "", "HTTP address of the element API, empty disables it")
	downloadDir = flag.String("download-dir", "", "Directory symbol images are fetched into, empty disables fetching")
	advertise   = flag.Bool("advertise", false, "Announce the receiver over mDNS")
	logFormat   = flag.String("log-format", "text", "Log format: text or json")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		slog.Error("can't create logger", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	cfg, err := config.LoadService(*configPath)
	if err != nil {
		logger.Error("configuration", "error", err)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Monitor.ListenAddr = *listenAddr
		case "http":
			cfg.Monitor.HTTPAddr = *httpAddr
		case "download-dir":
			cfg.Monitor.DownloadDir = *downloadDir
		case "advertise":
			cfg.Monitor.Advertise = *advertise
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("tuio monitor stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("tuio monitor stopped")
}

func run(ctx context.Context, cfg config.Service, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	queues := tuio.NewQueues(cfg.Monitor.QueueCapacity)
	dispatcher := tuio.NewDispatcher(tuio.DispatcherConfig{Queues: queues, Metrics: m, Logger: logger})
	receiver := tuio.NewReceiver(tuio.ReceiverConfig{
		Address:    cfg.Monitor.ListenAddr,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	store := tuio.NewStore(tuio.StoreConfig{
		Timeout: cfg.ElementTimeout,
		Metrics: m,
		Logger:  logger,
	})

	var images *surface.ImageCache
	if cfg.Monitor.DownloadDir != "" {
		host := cfg.ServerIP
		if host == config.AutoServerIP || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		downloader := surface.NewHTTPUploader(host, cfg.Upload.HTTPPort, cfg.Upload.Timeout)
		var err error
		images, err = surface.OpenImageCache(cfg.Monitor.DownloadDir, downloader, logger)
		if err != nil {
			return err
		}
		defer images.Close()
	}

	hub := surface.NewHub(logger)
	monitor := surface.NewMonitor(surface.MonitorConfig{
		Store:    store,
		Queues:   queues,
		Interval: cfg.Monitor.DrainInterval,
		Hub:      hub,
		Images:   images,
		Logger:   logger,
	})

	if cfg.Monitor.Advertise {
		_, portText, err := net.SplitHostPort(cfg.Monitor.ListenAddr)
		if err != nil {
			return errors.Wrap(err, "listen address")
		}
		port, err := strconv.Atoi(portText)
		if err != nil {
			return errors.Wrap(err, "listen port")
		}
		hostname, _ := os.Hostname()
		ad, err := discovery.Advertise("tuio-monitor-"+hostname, port, []string{"version=2.0"})
		if err != nil {
			return err
		}
		defer ad.Shutdown()
	}

	logger.Info("tuio monitor started", "listen", cfg.Monitor.ListenAddr, "http", cfg.Monitor.HTTPAddr,
		"element_timeout", cfg.ElementTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return receiver.Start(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error {
		hub.Run(gctx.Done())
		return nil
	})
	if images != nil {
		g.Go(func() error {
			images.Run(gctx)
			return nil
		})
	}
	if cfg.Monitor.HTTPAddr != "" {
		router := surface.NewRouter(monitor, hub, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		g.Go(func() error { return surface.Serve(gctx, cfg.Monitor.HTTPAddr, router, logger) })
	}
	return g.Wait()
}
