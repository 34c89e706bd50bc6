package tuio

import (
	"testing"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePattern() *ImagePattern {
	p := NewImagePattern(12, 3)
	p.Bounds = Bounds{X: 0.5, Y: 0.25, Angle: 181.5, Width: 0.375, Height: 0.125}
	p.Symbol = Symbol{UUID: "5b0b5d7c-1d2e-4c5e-9a8f-0e1d2c3b4a59", TypeID: UnsetID, ClassID: 4}
	return p
}

func marshal(t *testing.T, msg *osc.Message) []byte {
	t.Helper()
	data, err := msg.MarshalBinary()
	require.NoError(t, err)
	return data
}

func TestPatternWireRoundTrip(t *testing.T) {
	p := samplePattern()
	msgs := PatternMessages(p)
	require.Len(t, msgs, 2)
	assert.Equal(t, AddressBounds, msgs[0].Address)
	assert.Equal(t, AddressSymbol, msgs[1].Address)

	d := NewDispatcher(DispatcherConfig{Queues: NewQueues(4)})
	for _, msg := range msgs {
		require.NoError(t, d.DispatchPacket(marshal(t, msg)))
	}
	q := d.Queues()
	require.Len(t, q.Bounds, 1)
	require.Len(t, q.Symbols, 1)
	bnd := <-q.Bounds
	sym := <-q.Symbols
	assert.Equal(t, p.Key(), bnd.Key())
	assert.Equal(t, p.Key(), sym.Key())
	assert.Equal(t, p.Bounds, bnd.Bounds)
	assert.True(t, p.Symbol.Equal(sym.Symbol))
}

func TestPatternMessagesSkipInvalid(t *testing.T) {
	p := samplePattern()
	p.Symbol = NewSymbol("")
	assert.Nil(t, PatternMessages(p))
	p = samplePattern()
	p.Bounds.Height = 0
	assert.Nil(t, PatternMessages(p))
	assert.Nil(t, PatternMessages(nil))
}

func TestPointerWireRoundTrip(t *testing.T) {
	ptr := &Pointer{
		SessionID: 7, UserID: 1, TypeID: PointerTypeEraser, ClassID: 2,
		X: 0.75, Y: 0.5, Angle: 90, Shear: 0, Radius: 12, Pressed: true,
		Data: DataList{{MimeType: "text/rgb", Payload: "1,2,3"}, {MimeType: "text/plain", Payload: "hi"}},
	}
	msgs := PointerMessages(ptr)
	require.Len(t, msgs, 3)
	assert.Equal(t, AddressPointer, msgs[0].Address)
	assert.Equal(t, AddressData, msgs[1].Address)
	assert.Equal(t, AddressData, msgs[2].Address)

	decoded, err := DecodePointer(msgs[0])
	require.NoError(t, err)
	want := *ptr
	want.Data = nil
	assert.Equal(t, want, decoded.Pointer)

	for i, msg := range msgs[1:] {
		u, err := DecodeData(msg)
		require.NoError(t, err)
		assert.Equal(t, ptr.Key(), u.Key())
		assert.Equal(t, ptr.Data[i], u.Data)
	}
}

func TestPointerMessagesSkipEmpty(t *testing.T) {
	assert.Nil(t, PointerMessages(NewPointer(NoSession, PointerTypePen)))
	assert.Nil(t, PointerMessages(nil))
}

func TestDecodeSymbolRejectsUnknownKind(t *testing.T) {
	msg := osc.NewMessage(AddressSymbol, int32(1), int32(-1), int32(0), int32(0), "fiducial", "42")
	_, err := DecodeSymbol(msg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedSymbolKind))

	d := NewDispatcher(DispatcherConfig{})
	err = d.Dispatch(msg)
	assert.True(t, errors.Is(err, ErrUnsupportedSymbolKind))
	assert.Zero(t, d.Queues().Len())
}

func TestDecodeMalformed(t *testing.T) {
	cases := []*osc.Message{
		osc.NewMessage(AddressBounds, int32(1), int32(-1), float32(0.5)),
		osc.NewMessage(AddressBounds, "1", int32(-1), float32(0.5), float32(0.5), float32(0), float32(0.1), float32(0.1)),
		osc.NewMessage(AddressPointer, int32(1), int32(-1), int32(0), int32(0), float32(0.5), float32(0.5), float32(0), float32(0), float32(10), "yes"),
		osc.NewMessage(AddressData, int32(1), int32(-1), int32(0), "text/plain", int32(3)),
	}
	d := NewDispatcher(DispatcherConfig{})
	for _, msg := range cases {
		err := d.Dispatch(msg)
		require.Error(t, err, msg.Address)
		assert.True(t, errors.Is(err, ErrMalformedMessage), msg.Address)
	}
	assert.Zero(t, d.Queues().Len())
}

func TestDecodeLenientNumbers(t *testing.T) {
	msg := osc.NewMessage(AddressPointer, int32(1), int32(-1), int32(0), int32(0), int32(1), int32(0), int32(0), int32(0), int32(10), int32(1))
	u, err := DecodePointer(msg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, u.Pointer.X)
	assert.Equal(t, 10.0, u.Pointer.Radius)
	assert.True(t, u.Pointer.Pressed)
}

func TestDispatchIgnoresUnknownAddress(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	assert.NoError(t, d.Dispatch(osc.NewMessage("/tuio2/frm", int32(1))))
	assert.NoError(t, d.Dispatch(nil))
	assert.Zero(t, d.Queues().Len())
}

func TestDispatchBundle(t *testing.T) {
	p := samplePattern()
	bundle := osc.NewBundle(epoch)
	for _, msg := range PatternMessages(p) {
		require.NoError(t, bundle.Append(msg))
	}
	data, err := bundle.MarshalBinary()
	require.NoError(t, err)

	d := NewDispatcher(DispatcherConfig{})
	require.NoError(t, d.DispatchPacket(data))
	assert.Len(t, d.Queues().Bounds, 1)
	assert.Len(t, d.Queues().Symbols, 1)
}

func TestDispatchDropsOnFullQueue(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Queues: NewQueues(1)})
	msg := BoundsMessage(samplePattern())
	require.NoError(t, d.Dispatch(msg))
	require.NoError(t, d.Dispatch(msg))
	assert.Len(t, d.Queues().Bounds, 1)
}

func TestDispatchPacketGarbage(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	assert.Error(t, d.DispatchPacket([]byte("not osc")))
}
