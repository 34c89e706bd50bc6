package surface

import (
	"github.com/LdDl/surface-tuio/tuio"
)

// Event actions.
const (
	ActionUpdate = "update"
	ActionEvict  = "evict"
)

// BoundsView is the JSON form of tuio.Bounds
type BoundsView struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SymbolView is the JSON form of tuio.Symbol
type SymbolView struct {
	UUID    string `json:"uuid"`
	TypeID  int32  `json:"type_id"`
	ClassID int32  `json:"class_id"`
}

// DataView is the JSON form of tuio.Data
type DataView struct {
	MimeType string `json:"mime_type"`
	Payload  string `json:"payload"`
}

// PatternView is the JSON form of a live image pattern
type PatternView struct {
	Key       string     `json:"key"`
	SessionID int32      `json:"session_id"`
	UserID    int32      `json:"user_id"`
	Bounds    BoundsView `json:"bounds"`
	Symbol    SymbolView `json:"symbol"`
	Data      []DataView `json:"data,omitempty"`
}

// PointerView is the JSON form of a live pointer
type PointerView struct {
	Key       string  `json:"key"`
	SessionID int32   `json:"session_id"`
	UserID    int32   `json:"user_id"`
	TypeID    int32   `json:"type_id"`
	ClassID   int32   `json:"class_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Angle     float64 `json:"angle"`
	Shear     float64 `json:"shear"`
	Radius    float64 `json:"radius"`
	Pressed   bool    `json:"pressed"`
	// Color is the normalized "r,g,b" value of the color datum, if it parses.
	Color string     `json:"color,omitempty"`
	Data  []DataView `json:"data,omitempty"`
}

// ColorMimeType is the data key carrying pen colours.
const ColorMimeType = "color"

// Event is one change pushed to stream subscribers
type Event struct {
	Kind    string       `json:"kind"`
	Action  string       `json:"action"`
	Key     string       `json:"key"`
	Pattern *PatternView `json:"pattern,omitempty"`
	Pointer *PointerView `json:"pointer,omitempty"`
}

// NewPatternView converts a pattern
func NewPatternView(p *tuio.ImagePattern) PatternView {
	return PatternView{
		Key:       p.Key().String(),
		SessionID: int32(p.SessionID),
		UserID:    p.UserID,
		Bounds: BoundsView{
			X:      p.Bounds.X,
			Y:      p.Bounds.Y,
			Angle:  p.Bounds.Angle,
			Width:  p.Bounds.Width,
			Height: p.Bounds.Height,
		},
		Symbol: SymbolView{
			UUID:    p.Symbol.UUID,
			TypeID:  p.Symbol.TypeID,
			ClassID: p.Symbol.ClassID,
		},
		Data: dataViews(p.Data),
	}
}

// NewPointerView converts a pointer
func NewPointerView(p *tuio.Pointer) PointerView {
	return PointerView{
		Key:       p.Key().String(),
		SessionID: int32(p.SessionID),
		UserID:    p.UserID,
		TypeID:    p.TypeID,
		ClassID:   p.ClassID,
		X:         p.X,
		Y:         p.Y,
		Angle:     p.Angle,
		Shear:     p.Shear,
		Radius:    p.Radius,
		Pressed:   p.Pressed,
		Color:     pointerColor(p.Data),
		Data:      dataViews(p.Data),
	}
}

func pointerColor(list tuio.DataList) string {
	payload, ok := list.Value(ColorMimeType)
	if !ok {
		return ""
	}
	rgb, ok := tuio.ParseRGB(payload)
	if !ok {
		return ""
	}
	return tuio.FormatRGB(rgb)
}

func dataViews(list tuio.DataList) []DataView {
	if len(list) == 0 {
		return nil
	}
	out := make([]DataView, len(list))
	for i, d := range list {
		out[i] = DataView{MimeType: d.MimeType, Payload: d.Payload}
	}
	return out
}
