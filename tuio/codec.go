package tuio

import (
	"github.com/hypebeast/go-osc/osc"
)

// OSC addresses of the four TUIO 2.0 element kinds.
const (
	AddressBounds  = "/tuio2/bnd"
	AddressSymbol  = "/tuio2/sym"
	AddressPointer = "/tuio2/ptr"
	AddressData    = "/tuio2/dat"
)

// BoundsMessage encodes
// sessionId:i userId:i x:f y:f angle:f width:f height:f
func BoundsMessage(p *ImagePattern) *osc.Message {
	return osc.NewMessage(AddressBounds,
		int32(p.SessionID),
		p.UserID,
		float32(p.Bounds.X),
		float32(p.Bounds.Y),
		float32(p.Bounds.Angle),
		float32(p.Bounds.Width),
		float32(p.Bounds.Height),
	)
}

// SymbolMessage encodes
// sessionId:i userId:i typeTag:i classId:i "uuid":s value:s
func SymbolMessage(p *ImagePattern) *osc.Message {
	return osc.NewMessage(AddressSymbol,
		int32(p.SessionID),
		p.UserID,
		p.Symbol.TypeID,
		p.Symbol.ClassID,
		SymbolKindUUID,
		p.Symbol.UUID,
	)
}

// PointerMessage encodes
// sessionId:i userId:i typeTag:i classId:i x:f y:f angle:f shear:f radius:f pressed:T|F
func PointerMessage(p *Pointer) *osc.Message {
	return osc.NewMessage(AddressPointer,
		int32(p.SessionID),
		p.UserID,
		p.TypeID,
		p.ClassID,
		float32(p.X),
		float32(p.Y),
		float32(p.Angle),
		float32(p.Shear),
		float32(p.Radius),
		p.Pressed,
	)
}

// DataMessage encodes one datum of pointer p
// sessionId:i userId:i classId:i mimeType:s payload:s
func DataMessage(p *Pointer, d Data) *osc.Message {
	return osc.NewMessage(AddressData,
		int32(p.SessionID),
		p.UserID,
		p.ClassID,
		d.MimeType,
		d.Payload,
	)
}

// PatternMessages returns bnd followed by sym, or nothing for an invalid pattern
func PatternMessages(p *ImagePattern) []*osc.Message {
	if p == nil || !p.IsValid() {
		return nil
	}
	return []*osc.Message{BoundsMessage(p), SymbolMessage(p)}
}

// PointerMessages returns ptr followed by one dat per attached datum, or nothing for an empty pointer
func PointerMessages(p *Pointer) []*osc.Message {
	if p == nil || p.IsEmpty() {
		return nil
	}
	msgs := make([]*osc.Message, 0, 1+len(p.Data))
	msgs = append(msgs, PointerMessage(p))
	for _, d := range p.Data {
		msgs = append(msgs, DataMessage(p, d))
	}
	return msgs
}
