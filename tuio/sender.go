package tuio

import (
	"log/slog"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"

	"github.com/LdDl/surface-tuio/metrics"
)

// SenderConfig configures a Sender
type SenderConfig struct {
	Writer  PacketWriter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Sender publishes patterns and pointers, one OSC message per datagram.
type Sender struct {
	writer  PacketWriter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSender creates new instance of Sender
func NewSender(cfg SenderConfig) *Sender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		writer:  cfg.Writer,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// NewUDPSender dials host:port and creates a sender over the connection
func NewUDPSender(host string, port int, m *metrics.Metrics, logger *slog.Logger) (*Sender, error) {
	w, err := DialUDP(host, port)
	if err != nil {
		return nil, err
	}
	return NewSender(SenderConfig{Writer: w, Metrics: m, Logger: logger}), nil
}

// SendPattern sends bnd and sym of a valid pattern. Invalid patterns are skipped.
func (s *Sender) SendPattern(p *ImagePattern) error {
	return s.send(PatternMessages(p))
}

// SendPatterns sends every valid pattern. It keeps going after a failure and returns the first one.
func (s *Sender) SendPatterns(patterns []*ImagePattern) error {
	var first error
	for _, p := range patterns {
		if err := s.SendPattern(p); err != nil && first == nil {
			first = errors.Wrapf(err, "pattern %s", p.Key())
		}
	}
	return first
}

// SendPointer sends ptr followed by one dat per attached datum. Empty pointers are skipped.
func (s *Sender) SendPointer(p *Pointer) error {
	return s.send(PointerMessages(p))
}

// SendPointers sends every non-empty pointer. It keeps going after a failure and returns the first one.
func (s *Sender) SendPointers(pointers []*Pointer) error {
	var first error
	for _, p := range pointers {
		if err := s.SendPointer(p); err != nil && first == nil {
			first = errors.Wrapf(err, "pointer %s", p.Key())
		}
	}
	return first
}

// Close closes the underlying writer
func (s *Sender) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func (s *Sender) send(msgs []*osc.Message) error {
	for _, msg := range msgs {
		data, err := msg.MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "encode %s", msg.Address)
		}
		if _, err := s.writer.Write(data); err != nil {
			return errors.Wrapf(err, "send %s", msg.Address)
		}
		s.metrics.MessageSent(msg.Address)
	}
	return nil
}
