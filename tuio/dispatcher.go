package tuio

import (
	"log/slog"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"

	"github.com/LdDl/surface-tuio/metrics"
)

var (
	// ErrUnsupportedSymbolKind is returned for /tuio2/sym messages whose kind is not "uuid".
	ErrUnsupportedSymbolKind = errors.New("symbol kind must be 'uuid'")
	// ErrMalformedMessage is returned when arity or argument types do not match the address.
	ErrMalformedMessage = errors.New("malformed tuio message")
)

// DecodeBounds decodes a /tuio2/bnd message
func DecodeBounds(msg *osc.Message) (BoundsUpdate, error) {
	a := args{msg: msg}
	a.arity(7)
	u := BoundsUpdate{
		SessionID: SessionID(a.readInt(0)),
		UserID:    a.readInt(1),
		Bounds: Bounds{
			X:      a.readFloat(2),
			Y:      a.readFloat(3),
			Angle:  a.readFloat(4),
			Width:  a.readFloat(5),
			Height: a.readFloat(6),
		},
	}
	return u, a.err
}

// DecodeSymbol decodes a /tuio2/sym message
func DecodeSymbol(msg *osc.Message) (SymbolUpdate, error) {
	a := args{msg: msg}
	a.arity(6)
	u := SymbolUpdate{
		SessionID: SessionID(a.readInt(0)),
		UserID:    a.readInt(1),
		Symbol: Symbol{
			TypeID:  a.readInt(2),
			ClassID: a.readInt(3),
			UUID:    a.readString(5),
		},
	}
	kind := a.readString(4)
	if a.err != nil {
		return SymbolUpdate{}, a.err
	}
	if kind != SymbolKindUUID {
		return SymbolUpdate{}, errors.Wrapf(ErrUnsupportedSymbolKind, "got %q", kind)
	}
	return u, nil
}

// DecodePointer decodes a /tuio2/ptr message
func DecodePointer(msg *osc.Message) (PointerUpdate, error) {
	a := args{msg: msg}
	a.arity(10)
	u := PointerUpdate{Pointer: Pointer{
		SessionID: SessionID(a.readInt(0)),
		UserID:    a.readInt(1),
		TypeID:    a.readInt(2),
		ClassID:   a.readInt(3),
		X:         a.readFloat(4),
		Y:         a.readFloat(5),
		Angle:     a.readFloat(6),
		Shear:     a.readFloat(7),
		Radius:    a.readFloat(8),
		Pressed:   a.readBool(9),
	}}
	return u, a.err
}

// DecodeData decodes a /tuio2/dat message
func DecodeData(msg *osc.Message) (DataUpdate, error) {
	a := args{msg: msg}
	a.arity(5)
	u := DataUpdate{
		SessionID: SessionID(a.readInt(0)),
		UserID:    a.readInt(1),
		ClassID:   a.readInt(2),
		Data: Data{
			MimeType: a.readString(3),
			Payload:  a.readString(4),
		},
	}
	return u, a.err
}

// DispatcherConfig configures a Dispatcher
type DispatcherConfig struct {
	Queues  *Queues
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Dispatcher routes decoded messages onto the kind-specific queues.
type Dispatcher struct {
	queues   *Queues
	metrics  *metrics.Metrics
	logger   *slog.Logger
	handlers map[string]func(*osc.Message) (bool, error)
}

// NewDispatcher creates a dispatcher. Nil queues are replaced by default-sized ones.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	q := cfg.Queues
	if q == nil {
		q = NewQueues(DefaultQueueCapacity)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		queues:  q,
		metrics: cfg.Metrics,
		logger:  logger,
	}
	d.handlers = map[string]func(*osc.Message) (bool, error){
		AddressBounds: func(msg *osc.Message) (bool, error) {
			u, err := DecodeBounds(msg)
			if err != nil {
				return false, err
			}
			return q.pushBounds(u), nil
		},
		AddressSymbol: func(msg *osc.Message) (bool, error) {
			u, err := DecodeSymbol(msg)
			if err != nil {
				return false, err
			}
			return q.pushSymbol(u), nil
		},
		AddressPointer: func(msg *osc.Message) (bool, error) {
			u, err := DecodePointer(msg)
			if err != nil {
				return false, err
			}
			return q.pushPointer(u), nil
		},
		AddressData: func(msg *osc.Message) (bool, error) {
			u, err := DecodeData(msg)
			if err != nil {
				return false, err
			}
			return q.pushData(u), nil
		},
	}
	return d
}

// Queues returns the queues the dispatcher fills
func (d *Dispatcher) Queues() *Queues {
	return d.queues
}

// Dispatch decodes msg and enqueues the update. Messages on unknown addresses are ignored.
func (d *Dispatcher) Dispatch(msg *osc.Message) error {
	if msg == nil {
		return nil
	}
	handle, ok := d.handlers[msg.Address]
	if !ok {
		return nil
	}
	queued, err := handle(msg)
	if err != nil {
		d.metrics.DecodeError(msg.Address)
		return errors.Wrapf(err, "decode %s", msg.Address)
	}
	d.metrics.MessageReceived(msg.Address)
	if !queued {
		d.metrics.QueueDrop(msg.Address)
		d.logger.Debug("update queue full, dropping", "address", msg.Address)
	}
	return nil
}

// DispatchPacket parses one datagram (message or bundle) and dispatches every message in it.
// The first decode error is returned after all messages were tried.
func (d *Dispatcher) DispatchPacket(data []byte) error {
	packet, err := osc.ParsePacket(string(data))
	if err != nil {
		return errors.Wrap(err, "parse osc packet")
	}
	return d.dispatchPacket(packet)
}

func (d *Dispatcher) dispatchPacket(packet osc.Packet) error {
	switch p := packet.(type) {
	case *osc.Message:
		return d.Dispatch(p)
	case *osc.Bundle:
		var first error
		for _, msg := range p.Messages {
			if err := d.Dispatch(msg); err != nil && first == nil {
				first = err
			}
		}
		for _, b := range p.Bundles {
			if err := d.dispatchPacket(b); err != nil && first == nil {
				first = err
			}
		}
		return first
	default:
		return nil
	}
}

// args reads typed OSC arguments and remembers the first mismatch.
type args struct {
	msg *osc.Message
	err error
}

func (a *args) arity(n int) {
	if a.err == nil && len(a.msg.Arguments) != n {
		a.err = errors.Wrapf(ErrMalformedMessage, "%s expects %d arguments, got %d", a.msg.Address, n, len(a.msg.Arguments))
	}
}

func (a *args) fail(i int, want string) {
	if a.err == nil {
		a.err = errors.Wrapf(ErrMalformedMessage, "%s argument %d: expected %s, got %T", a.msg.Address, i, want, a.msg.Arguments[i])
	}
}

func (a *args) readInt(i int) int32 {
	if a.err != nil {
		return 0
	}
	switch v := a.msg.Arguments[i].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	}
	a.fail(i, "int")
	return 0
}

// readFloat accepts int arguments as well: senders commonly emit whole numbers as 'i'.
func (a *args) readFloat(i int) float64 {
	if a.err != nil {
		return 0
	}
	switch v := a.msg.Arguments[i].(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	a.fail(i, "float")
	return 0
}

func (a *args) readString(i int) string {
	if a.err != nil {
		return ""
	}
	if v, ok := a.msg.Arguments[i].(string); ok {
		return v
	}
	a.fail(i, "string")
	return ""
}

func (a *args) readBool(i int) bool {
	if a.err != nil {
		return false
	}
	switch v := a.msg.Arguments[i].(type) {
	case bool:
		return v
	case int32:
		return v != 0
	case int64:
		return v != 0
	}
	a.fail(i, "bool")
	return false
}
