package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/DoyleJ11/whiteboard-sync/internal/wire"
)

// OpKind is the "t" key of a compact op.
type OpKind string

const (
	OpStart  OpKind = "s"
	OpAppend OpKind = "a"
	OpEnd    OpKind = "e"
	OpFull   OpKind = "f"
	OpRemove OpKind = "r"
)

// Op is one compact drawing action. Which fields are meaningful depends on
// Kind:
//
//	s  ID Color Opacity Width X Y
//	a  ID X Y
//	e  ID
//	f  ID Color Opacity Width Points
//	r  ID
type Op struct {
	Kind    OpKind
	ID      string
	Color   Color
	Opacity float64
	Width   float64
	X, Y    float64
	Points  []float64
}

func StartOp(id string, c Color, opacity, width, x, y float64) Op {
	return Op{Kind: OpStart, ID: id, Color: c, Opacity: opacity, Width: width, X: x, Y: y}
}

func AppendOp(id string, x, y float64) Op {
	return Op{Kind: OpAppend, ID: id, X: x, Y: y}
}

func EndOp(id string) Op {
	return Op{Kind: OpEnd, ID: id}
}

func RemoveOp(id string) Op {
	return Op{Kind: OpRemove, ID: id}
}

// FullOp describes a complete stroke. Coordinates are quantized to two
// decimals.
func FullOp(id string, c Color, opacity, width float64, flat []float64) Op {
	pts := make([]float64, len(flat))
	for i, v := range flat {
		pts[i] = Quantize(v)
	}
	return Op{Kind: OpFull, ID: id, Color: c, Opacity: opacity, Width: width, Points: pts}
}

// Quantize rounds v to two decimal places.
func Quantize(v float64) float64 {
	return math.Round(v*100) / 100
}

type opJSON struct {
	T OpKind    `json:"t"`
	I string    `json:"i"`
	C *Color    `json:"c,omitempty"`
	O *float64  `json:"o,omitempty"`
	W *float64  `json:"w,omitempty"`
	X *float64  `json:"x,omitempty"`
	Y *float64  `json:"y,omitempty"`
	P []float64 `json:"p,omitempty"`
}

func (op Op) MarshalJSON() ([]byte, error) {
	j := opJSON{T: op.Kind, I: op.ID}
	switch op.Kind {
	case OpStart:
		j.C, j.O, j.W, j.X, j.Y = &op.Color, &op.Opacity, &op.Width, &op.X, &op.Y
	case OpAppend:
		j.X, j.Y = &op.X, &op.Y
	case OpFull:
		j.C, j.O, j.W = &op.Color, &op.Opacity, &op.Width
		j.P = op.Points
		if j.P == nil {
			j.P = []float64{}
		}
	case OpEnd, OpRemove:
	default:
		return nil, fmt.Errorf("%w: op kind %q", ErrMalformed, op.Kind)
	}
	return json.Marshal(j)
}

// UnmarshalJSON rejects ops that lack the fields their kind requires.
// Opacity of start and full ops defaults to 1 when omitted.
func (op *Op) UnmarshalJSON(b []byte) error {
	var j opJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	if j.I == "" {
		return fmt.Errorf("%w: op without stroke id", ErrMalformed)
	}
	out := Op{Kind: j.T, ID: j.I}
	if j.T == OpStart || j.T == OpFull {
		out.Opacity = 1
		if j.O != nil {
			out.Opacity = *j.O
		}
	}

	switch j.T {
	case OpStart:
		if j.C == nil || j.W == nil || j.X == nil || j.Y == nil {
			return fmt.Errorf("%w: start op %s missing fields", ErrMalformed, j.I)
		}
		out.Color, out.Width, out.X, out.Y = *j.C, *j.W, *j.X, *j.Y
	case OpAppend:
		if j.X == nil || j.Y == nil {
			return fmt.Errorf("%w: append op %s missing point", ErrMalformed, j.I)
		}
		out.X, out.Y = *j.X, *j.Y
	case OpFull:
		if j.C == nil || j.W == nil || len(j.P)%2 != 0 {
			return fmt.Errorf("%w: full op %s", ErrMalformed, j.I)
		}
		out.Color, out.Width, out.Points = *j.C, *j.W, j.P
	case OpEnd, OpRemove:
	default:
		return fmt.Errorf("%w: op kind %q", ErrMalformed, j.T)
	}
	*op = out
	return nil
}

// Color is a 24-bit RGB value. It is written as "#rrggbb" and read from
// either that form or a JSON number.
type Color uint32

func (c Color) String() string { return wire.FormatHexColor(uint32(c)) }

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := wire.ParseHexColor(s)
		if err != nil {
			return err
		}
		*c = Color(v)
		return nil
	}
	var n uint32
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: color %s", ErrMalformed, b)
	}
	*c = Color(n & 0xffffff)
	return nil
}
