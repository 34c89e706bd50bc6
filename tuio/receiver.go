package tuio

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/pkg/errors"
)

const (
	// maxDatagramSize is the largest UDP payload.
	maxDatagramSize = 65535
	readTimeout     = 100 * time.Millisecond
)

// ReceiverConfig configures a Receiver
type ReceiverConfig struct {
	// Address to listen on, e.g. "0.0.0.0:5001"
	Address    string
	ReadBuffer int
	Factory    UDPSocketFactory
	Dispatcher *Dispatcher
	Logger     *slog.Logger
}

// Receiver owns the listening socket and feeds every datagram to the dispatcher.
// It is the only producer of the dispatcher queues.
type Receiver struct {
	address    string
	readBuffer int
	factory    UDPSocketFactory
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewReceiver creates new instance of Receiver
func NewReceiver(cfg ReceiverConfig) *Receiver {
	factory := cfg.Factory
	if factory == nil {
		factory = NetSocketFactory{}
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher(DispatcherConfig{Logger: cfg.Logger})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		address:    cfg.Address,
		readBuffer: cfg.ReadBuffer,
		factory:    factory,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Dispatcher returns the dispatcher datagrams are handed to
func (r *Receiver) Dispatcher() *Dispatcher {
	return r.dispatcher
}

// Start listens until ctx is done. It returns ctx.Err() on cancellation.
// Malformed datagrams are logged and skipped.
func (r *Receiver) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", r.address)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", r.address)
	}
	conn, err := r.factory.ListenUDP("udp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", r.address)
	}
	defer conn.Close()
	if r.readBuffer > 0 {
		if err := conn.SetReadBuffer(r.readBuffer); err != nil {
			r.logger.Warn("can't set receive buffer", "bytes", r.readBuffer, "error", err)
		}
	}
	r.logger.Info("tuio receiver started", "address", conn.LocalAddr().String())

	buffer := make([]byte, maxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("tuio receiver stopped")
			return ctx.Err()
		default:
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "read")
			}
			r.logger.Warn("udp read failed", "error", err)
			continue
		}
		if err := r.dispatcher.DispatchPacket(buffer[:n]); err != nil {
			r.logger.Warn("dropping tuio datagram", "from", from.String(), "error", err)
		}
	}
}
