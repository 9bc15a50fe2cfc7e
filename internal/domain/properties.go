package domain

import (
	"math"
	"reflect"
)

// Property keys shared between the typed views and the persisted JSON bag.
const (
	PropX                 = "x"
	PropY                 = "y"
	PropWidth             = "width"
	PropHeight            = "height"
	PropContent           = "content"
	PropSrc               = "src"
	PropAlt               = "alt"
	PropConnectionGroupID = "connectionGroupId"
	PropConnectionState   = "connectionState"
	PropConnectedNodeID   = "connectedNodeId"
	PropLineColor         = "lineColor"
	PropAllowRetry        = "allowRetry"
)

// Properties is the open per-type attribute bag. Core code reads and writes it
// through the typed views below (Geometry, ConnectionProps, TextProps).
type Properties map[string]any

// Clone deep-copies nested maps and slices so snapshots never alias.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Properties:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	}
	return v
}

// Merge applies patch on top of p. Keys absent from the patch are kept;
// a nil value removes the key.
func (p Properties) Merge(patch Properties) Properties {
	out := p.Clone()
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func (p Properties) Float(key string) float64 {
	f, _ := number(p[key])
	return f
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// Equal reports whether p and q hold the same keys and values. Numbers
// compare by value, so 3 and 3.0 are equal.
func (p Properties) Equal(q Properties) bool {
	if len(p) != len(q) {
		return false
	}
	for k, a := range p {
		b, ok := q[k]
		if !ok {
			return false
		}
		fa, na := number(a)
		fb, nb := number(b)
		if na && nb {
			if fa != fb {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(a, b) {
			return false
		}
	}
	return true
}

func (p Properties) String(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p Properties) Bool(key string, def bool) bool {
	if b, ok := p[key].(bool); ok {
		return b
	}
	return def
}

// Geometry is the Positionable view of an element.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (e Element) Geometry() Geometry {
	return Geometry{
		X:      e.Properties.Float(PropX),
		Y:      e.Properties.Float(PropY),
		Width:  e.Properties.Float(PropWidth),
		Height: e.Properties.Float(PropHeight),
	}
}

// Patch converts the geometry into a property patch.
func (g Geometry) Patch() Properties {
	return Properties{PropX: g.X, PropY: g.Y, PropWidth: g.Width, PropHeight: g.Height}
}

// PositionPatch only carries x and y so sizes edited elsewhere survive.
func PositionPatch(x, y float64) Properties {
	return Properties{PropX: x, PropY: y}
}

// Center returns the midpoint of the rectangle.
func (g Geometry) Center() (float64, float64) {
	return g.X + g.Width/2, g.Y + g.Height/2
}

// Clamp keeps the rectangle inside [0, extent-size] on both axes.
func (g Geometry) Clamp(boundsW, boundsH float64) Geometry {
	g.X = clamp(g.X, 0, math.Max(0, boundsW-g.Width))
	g.Y = clamp(g.Y, 0, math.Max(0, boundsH-g.Height))
	return g
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnected    ConnectionState = "connected"
)

// ConnectionProps is the Connectable view of an element.
type ConnectionProps struct {
	GroupID         string          `json:"connectionGroupId"`
	State           ConnectionState `json:"connectionState"`
	ConnectedNodeID string          `json:"connectedNodeId"`
	LineColor       string          `json:"lineColor"`
	AllowRetry      bool            `json:"allowRetry"`
}

func (e Element) Connection() ConnectionProps {
	state := ConnectionState(e.Properties.String(PropConnectionState))
	if state == "" {
		state = ConnectionDisconnected
	}
	return ConnectionProps{
		GroupID:         e.Properties.String(PropConnectionGroupID),
		State:           state,
		ConnectedNodeID: e.Properties.String(PropConnectedNodeID),
		LineColor:       e.Properties.String(PropLineColor),
		AllowRetry:      e.Properties.Bool(PropAllowRetry, true),
	}
}

// TextProps is the TextEditable view of an element.
type TextProps struct {
	Content string `json:"content"`
}

func (e Element) Text() TextProps {
	return TextProps{Content: e.Properties.String(PropContent)}
}

// MediaProps covers image and video sources.
type MediaProps struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

func (e Element) Media() MediaProps {
	return MediaProps{Src: e.Properties.String(PropSrc), Alt: e.Properties.String(PropAlt)}
}
