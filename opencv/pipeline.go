// Package opencv implements the tracking capabilities and the video frame source on top of
// gocv. The implementations are compiled with the "opencv" build tag; without it every
// constructor returns tracking.ErrUnavailable.
package opencv

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/LdDl/surface-tuio/tracking"
)

// Supported RTP payloads of the video stream.
const (
	ProtocolJPEG = "jpeg"
	ProtocolVP8  = "vp8"
	ProtocolVP9  = "vp9"
	ProtocolMP4  = "mp4"
	ProtocolH264 = "h264"
	ProtocolH265 = "h265"
)

// ErrUnknownProtocol is returned for a stream protocol without a pipeline.
var ErrUnknownProtocol = errors.New("unknown stream protocol")

type pipelineStage struct {
	caps    string
	depay   string
	decoder string
}

var pipelineStages = map[string]pipelineStage{
	ProtocolJPEG: {
		caps:    "application/x-rtp, media=application, clock-rate=90000, encoding-name=X-GST",
		depay:   "rtpgstdepay",
		decoder: "jpegdec",
	},
	ProtocolVP8: {
		caps:    "application/x-rtp, media=video, clock-rate=90000, encoding-name=VP8",
		depay:   "rtpvp8depay",
		decoder: "vp8dec",
	},
	ProtocolVP9: {
		caps:    "application/x-rtp, media=video, clock-rate=90000, encoding-name=VP9",
		depay:   "rtpvp9depay",
		decoder: "vp9dec",
	},
	ProtocolMP4: {
		caps:    "application/x-rtp, media=video, clock-rate=90000, encoding-name=MP4V-ES",
		depay:   "rtpmp4vdepay",
		decoder: "avdec_mpeg4",
	},
	ProtocolH264: {
		caps:    "application/x-rtp, media=video, clock-rate=90000, encoding-name=H264",
		depay:   "rtph264depay",
		decoder: "avdec_h264",
	},
	ProtocolH265: {
		caps:    "application/x-rtp, media=video, clock-rate=90000, encoding-name=H265",
		depay:   "rtph265depay",
		decoder: "avdec_h265",
	},
}

// Protocols returns the supported stream protocols
func Protocols() []string {
	return []string{ProtocolJPEG, ProtocolVP8, ProtocolVP9, ProtocolMP4, ProtocolH264, ProtocolH265}
}

// SourceConfig describes the RTP/UDP video stream
type SourceConfig struct {
	Port     int
	Protocol string
	// Width rescales frames keeping square pixels. Zero or negative keeps the stream size.
	Width int
}

// PipelineDescription builds the GStreamer pipeline which receives the stream and hands BGR frames to appsink
func PipelineDescription(cfg SourceConfig) (string, error) {
	stage, ok := pipelineStages[strings.ToLower(cfg.Protocol)]
	if !ok {
		return "", errors.Wrapf(ErrUnknownProtocol, "%q", cfg.Protocol)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return "", errors.Errorf("invalid udp port %d", cfg.Port)
	}
	parts := []string{
		fmt.Sprintf("udpsrc port=%d", cfg.Port),
		stage.caps,
		"queue",
		stage.depay,
		stage.decoder,
		"videoconvert",
	}
	if cfg.Width > 0 {
		parts = append(parts, "videoscale", fmt.Sprintf("video/x-raw, width=%d, pixel-aspect-ratio=1/1", cfg.Width))
	}
	parts = append(parts, "appsink sync=false")
	return strings.Join(parts, " ! "), nil
}

// FrameSource yields decoded frames until the stream ends with io.EOF
type FrameSource interface {
	Next(ctx context.Context) (tracking.Frame, error)
	Close() error
}
