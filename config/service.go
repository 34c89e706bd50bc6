package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AutoServerIP makes the tracker discover the receiver.
const AutoServerIP = "auto"

// Upload modes.
const (
	UploadHTTP  = "http"
	UploadLocal = "local"
)

// Matcher and estimator backends.
const (
	BackendOpenCV = "opencv"
	BackendGo     = "go"
)

// Service is the configuration of the tracker and monitor binaries
type Service struct {
	PatternsConfig string  `yaml:"patterns_config"`
	PatternScale   float64 `yaml:"pattern_scale"`
	ServerIP       string  `yaml:"server_ip"` // "auto" looks the receiver up over mDNS
	TUIOPort       int     `yaml:"tuio_port"`
	FramePort      int     `yaml:"frame_port"`
	FrameWidth     int     `yaml:"frame_width"`
	FrameProtocol  string  `yaml:"frame_protocol"`
	UserID         int32   `yaml:"user_id"`

	Workers        int           `yaml:"workers"`
	Matcher        string        `yaml:"matcher"`   // opencv (FLANN) or go (brute force)
	Estimator      string        `yaml:"estimator"` // opencv or go (RANSAC over gonum)
	Smoothing      bool          `yaml:"smoothing"`
	ElementTimeout time.Duration `yaml:"element_timeout"`
	MetricsAddr    string        `yaml:"metrics_addr"` // empty disables the endpoint

	Upload  UploadConfig  `yaml:"upload"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// UploadConfig tells where pattern images are published to obtain their symbol ids
type UploadConfig struct {
	Mode     string        `yaml:"mode"` // http or local
	HTTPPort int           `yaml:"http_port"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MonitorConfig configures the receiving side
type MonitorConfig struct {
	ListenAddr    string        `yaml:"listen_addr"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DrainInterval time.Duration `yaml:"drain_interval"`
	DownloadDir   string        `yaml:"download_dir"` // empty disables fetching symbol images
	HTTPAddr      string        `yaml:"http_addr"`    // element API, change stream and metrics; empty disables
	Advertise     bool          `yaml:"advertise"`    // announce the receiver over mDNS
}

// DefaultService returns the defaults of the tracker process
func DefaultService() Service {
	return Service{
		PatternScale:   0.13,
		ServerIP:       "0.0.0.0",
		TUIOPort:       5001,
		FramePort:      6666,
		FrameWidth:     640,
		FrameProtocol:  "jpeg",
		UserID:         -1,
		Workers:        4,
		Matcher:        BackendOpenCV,
		Estimator:      BackendOpenCV,
		ElementTimeout: time.Second,
		Upload: UploadConfig{
			Mode:     UploadHTTP,
			HTTPPort: 5000,
			Timeout:  10 * time.Second,
		},
		Monitor: MonitorConfig{
			ListenAddr:    "0.0.0.0:5001",
			QueueCapacity: 1024,
			DrainInterval: 20 * time.Millisecond,
		},
	}
}

// LoadService reads a YAML file on top of the defaults. An empty path returns the defaults.
func LoadService(path string) (Service, error) {
	cfg := DefaultService()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Service{}, errors.Wrap(err, "failed to read service config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Service{}, errors.Wrap(err, "failed to parse service config")
	}
	if err := cfg.Validate(); err != nil {
		return Service{}, errors.Wrap(err, "invalid service config")
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (cfg *Service) Validate() error {
	var problems []string
	checkPort := func(name string, port int) {
		if port <= 0 || port > 65535 {
			problems = append(problems, name+" must be in 1..65535")
		}
	}
	checkPort("tuio_port", cfg.TUIOPort)
	checkPort("frame_port", cfg.FramePort)
	if cfg.Upload.Mode == UploadHTTP {
		checkPort("upload.http_port", cfg.Upload.HTTPPort)
	}
	if cfg.PatternScale <= 0 {
		problems = append(problems, "pattern_scale must be positive")
	}
	if cfg.ServerIP == "" {
		problems = append(problems, "server_ip is required")
	}
	if cfg.FrameWidth < 0 {
		problems = append(problems, "frame_width must not be negative")
	}
	if cfg.Workers <= 0 {
		problems = append(problems, "workers must be positive")
	}
	if cfg.Matcher != BackendOpenCV && cfg.Matcher != BackendGo {
		problems = append(problems, "matcher must be 'opencv' or 'go'")
	}
	if cfg.Estimator != BackendOpenCV && cfg.Estimator != BackendGo {
		problems = append(problems, "estimator must be 'opencv' or 'go'")
	}
	if cfg.Upload.Mode != UploadHTTP && cfg.Upload.Mode != UploadLocal {
		problems = append(problems, "upload.mode must be 'http' or 'local'")
	}
	if cfg.Monitor.QueueCapacity <= 0 {
		problems = append(problems, "monitor.queue_capacity must be positive")
	}
	if cfg.Monitor.DrainInterval <= 0 {
		problems = append(problems, "monitor.drain_interval must be positive")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
