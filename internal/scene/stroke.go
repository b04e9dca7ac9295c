package scene

import (
	"errors"
	"maps"
	"slices"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/smooth"
)

var (
	ErrStrokeNotOpen = errors.New("stroke is not open")
	ErrStrokeRemoved = errors.New("stroke was removed")
)

type State string

const (
	StateOpen    State = "open"
	StateClosed  State = "closed"
	StateRemoved State = "removed"
)

type Properties struct {
	Color   uint32 // 0xRRGGBB
	Width   float64
	Opacity float64
	Effects map[string]struct{}
}

// EffectList returns the effect tags in sorted order.
func (p Properties) EffectList() []string {
	return slices.Sorted(maps.Keys(p.Effects))
}

// Stroke is one continuous mark owned by the participant that drew it.
type Stroke struct {
	ID         string
	OwnerID    string
	Properties Properties

	points     []geom.Point
	simplified []geom.Point
	state      State
	bounds     geom.Rect
}

// NewStroke returns an open stroke with no points.
func NewStroke(id, ownerID string, props Properties) *Stroke {
	if props.Effects == nil {
		props.Effects = map[string]struct{}{}
	}
	return &Stroke{ID: id, OwnerID: ownerID, Properties: props, state: StateOpen}
}

func (s *Stroke) State() State { return s.state }

// Points returns the recorded points. The slice must not be modified.
func (s *Stroke) Points() []geom.Point { return s.points }

// Simplified returns the low-detail variant of a closed stroke, or the full
// point list when none was computed.
func (s *Stroke) Simplified() []geom.Point {
	if s.simplified == nil {
		return s.points
	}
	return s.simplified
}

// Append records one more point. Only open strokes accept points.
func (s *Stroke) Append(p geom.Point) error {
	switch s.state {
	case StateOpen:
	case StateRemoved:
		return ErrStrokeRemoved
	default:
		return ErrStrokeNotOpen
	}
	s.points = append(s.points, p)
	s.bounds = growBounds(s.bounds, p, len(s.points) == 1)
	return nil
}

// Close freezes the point list and derives the simplified variant.
func (s *Stroke) Close(tolerance float64) error {
	switch s.state {
	case StateOpen:
	case StateRemoved:
		return ErrStrokeRemoved
	default:
		return ErrStrokeNotOpen
	}
	s.points = slices.Clip(s.points)
	s.simplified = smooth.Simplify(s.points, tolerance)
	s.state = StateClosed
	return nil
}

func (s *Stroke) markRemoved() {
	s.state = StateRemoved
	s.simplified = nil
}

// Bounds returns the bounding box of the points grown by half the line
// width.
func (s *Stroke) Bounds() geom.Rect {
	return s.bounds.Inflate(s.Properties.Width / 2)
}

func growBounds(r geom.Rect, p geom.Point, first bool) geom.Rect {
	if first {
		return geom.Rect{X: p.X, Y: p.Y}
	}
	return geom.RectFromPoints([]geom.Point{{X: r.X, Y: r.Y}, {X: r.Right(), Y: r.Bottom()}, p})
}
