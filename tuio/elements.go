// Package tuio implements the TUIO 2.0 element model, the receiving-side element store
// and the OSC codec used to move elements between processes.
package tuio

import (
	"strconv"
	"strings"
)

// UnsetID is the default user, type and class identifier.
const UnsetID int32 = -1

// Bounds is a rotated rectangle: center position, rotation in degrees and size.
type Bounds struct {
	X      float64
	Y      float64
	Angle  float64
	Width  float64
	Height float64
}

// IsEmpty returns true when bounds have no area
func (b Bounds) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Normalized converts pixel bounds into units relative to frame height h and width w.
// Horizontal values are divided by w, vertical ones by h. The angle is kept as is.
func (b Bounds) Normalized(h, w float64) Bounds {
	return Bounds{
		X:      b.X / w,
		Y:      b.Y / h,
		Angle:  b.Angle,
		Width:  b.Width / w,
		Height: b.Height / h,
	}
}

// Scaled is the inverse of Normalized
func (b Bounds) Scaled(h, w float64) Bounds {
	return Bounds{
		X:      b.X * w,
		Y:      b.Y * h,
		Angle:  b.Angle,
		Width:  b.Width * w,
		Height: b.Height * h,
	}
}

// SymbolKindUUID is the only symbol kind carried on /tuio2/sym.
const SymbolKindUUID = "uuid"

// Symbol is a persistent identifier attached to a pattern (e.g. an uploaded resource id).
type Symbol struct {
	UUID    string
	TypeID  int32
	ClassID int32
}

// NewSymbol creates symbol with unset type and class
func NewSymbol(uuid string) Symbol {
	return Symbol{UUID: uuid, TypeID: UnsetID, ClassID: UnsetID}
}

// IsEmpty returns true when identifier is absent
func (s Symbol) IsEmpty() bool {
	return s.UUID == ""
}

// Equal compares identifier, type and class
func (s Symbol) Equal(other Symbol) bool {
	return s.UUID == other.UUID && s.TypeID == other.TypeID && s.ClassID == other.ClassID
}

// Data is a typed payload attached to an element.
type Data struct {
	MimeType string
	Payload  string
}

// DataList is a list of Data treated as a set keyed by mime type.
type DataList []Data

// Append adds d. With replace set an entry of the same mime type is removed first.
func (l DataList) Append(d Data, replace bool) DataList {
	if replace {
		l = l.without(d.MimeType)
	}
	return append(l, d)
}

// AppendAll adds every entry of other, replacing entries of the same mime type when replace is set.
func (l DataList) AppendAll(other DataList, replace bool) DataList {
	if replace {
		for _, d := range other {
			l = l.without(d.MimeType)
		}
	}
	return append(l, other...)
}

// Value returns the payload of the first entry with given mime type
func (l DataList) Value(mimeType string) (string, bool) {
	for _, d := range l {
		if d.MimeType == mimeType {
			return d.Payload, true
		}
	}
	return "", false
}

// Clone returns a copy which does not share backing storage
func (l DataList) Clone() DataList {
	if l == nil {
		return nil
	}
	out := make(DataList, len(l))
	copy(out, l)
	return out
}

func (l DataList) without(mimeType string) DataList {
	out := l[:0:0]
	for _, d := range l {
		if d.MimeType != mimeType {
			out = append(out, d)
		}
	}
	return out
}

// ParseRGB parses "r,g,b" colour payloads. Components wrap around 256.
func ParseRGB(s string) ([3]int, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return [3]int{}, false
	}
	var rgb [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [3]int{}, false
		}
		v %= 256
		if v < 0 {
			v += 256
		}
		rgb[i] = v
	}
	return rgb, true
}

// FormatRGB is the inverse of ParseRGB
func FormatRGB(rgb [3]int) string {
	return strconv.Itoa(rgb[0]) + "," + strconv.Itoa(rgb[1]) + "," + strconv.Itoa(rgb[2])
}

// ImagePattern is a tracked planar image: where it is (Bounds) and what it is (Symbol).
type ImagePattern struct {
	SessionID SessionID
	UserID    int32
	Bounds    Bounds
	Symbol    Symbol
	Data      DataList
}

// NewImagePattern creates an empty pattern for given session and user
func NewImagePattern(sessionID SessionID, userID int32) *ImagePattern {
	return &ImagePattern{
		SessionID: sessionID,
		UserID:    userID,
		Symbol:    NewSymbol(""),
	}
}

// Key returns the composite store key
func (p *ImagePattern) Key() PatternKey {
	return PatternKey{SessionID: p.SessionID, UserID: p.UserID}
}

// IsValid returns true if pattern may be published
func (p *ImagePattern) IsValid() bool {
	return !p.Bounds.IsEmpty() && !p.Symbol.IsEmpty()
}

// SetX sets horizontal center
func (p *ImagePattern) SetX(x float64) { p.Bounds.X = x }

// SetY sets vertical center
func (p *ImagePattern) SetY(y float64) { p.Bounds.Y = y }

// SetAngle sets rotation in degrees
func (p *ImagePattern) SetAngle(angle float64) { p.Bounds.Angle = angle }

// SetWidth sets bounds width
func (p *ImagePattern) SetWidth(width float64) { p.Bounds.Width = width }

// SetHeight sets bounds height
func (p *ImagePattern) SetHeight(height float64) { p.Bounds.Height = height }

// Clone returns a deep copy
func (p *ImagePattern) Clone() *ImagePattern {
	cp := *p
	cp.Data = p.Data.Clone()
	return &cp
}

// Pointer type identifiers.
const (
	PointerTypePointer int32 = 0
	PointerTypePen     int32 = 1
	PointerTypeEraser  int32 = 2
)

// DefaultPointerRadius is the radius of a pointer which did not configure one.
const DefaultPointerRadius = 10.0

// Pointer is a tracked pointing device: pen, eraser or plain pointer.
type Pointer struct {
	SessionID SessionID
	UserID    int32
	TypeID    int32
	ClassID   int32
	X         float64
	Y         float64
	Angle     float64
	Shear     float64
	Radius    float64
	Pressed   bool
	Data      DataList
}

// NewPointer creates a pointer with default radius and unset user and class
func NewPointer(sessionID SessionID, typeID int32) *Pointer {
	return &Pointer{
		SessionID: sessionID,
		UserID:    UnsetID,
		TypeID:    typeID,
		ClassID:   UnsetID,
		Radius:    DefaultPointerRadius,
	}
}

// Key returns the composite store key
func (p *Pointer) Key() PointerKey {
	return PointerKey{SessionID: p.SessionID, UserID: p.UserID, ClassID: p.ClassID}
}

// IsEmpty returns true if pointer has no session
func (p *Pointer) IsEmpty() bool {
	return p.SessionID == NoSession
}

// Clone returns a deep copy
func (p *Pointer) Clone() *Pointer {
	cp := *p
	cp.Data = p.Data.Clone()
	return &cp
}
