package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/quadtree"
)

var (
	ErrDuplicateStroke = errors.New("stroke id already in scene")
	ErrStrokeNotClosed = errors.New("only closed strokes can be added to the scene")
)

type Config struct {
	Bounds            geom.Rect
	MaxObjects        int
	MaxLevels         int
	SimplifyTolerance float64
	// LODDistance is how far a stroke's centre may be from the viewer
	// before it is drawn from its simplified variant.
	LODDistance float64
}

func DefaultConfig() Config {
	return Config{
		Bounds:            geom.Rect{X: -10000, Y: -10000, W: 20000, H: 20000},
		MaxObjects:        10,
		MaxLevels:         6,
		SimplifyTolerance: 1.5,
		LODDistance:       1500,
	}
}

// Scene is the set of finished strokes plus the spatial index over them.
// It is not safe for concurrent use; the session owns it.
type Scene struct {
	cfg        Config
	strokes    map[string]*Stroke
	order      []string
	tombstones map[string]struct{}
	index      *quadtree.Tree[string]
}

func New(cfg Config) *Scene {
	return &Scene{
		cfg:        cfg,
		strokes:    make(map[string]*Stroke),
		tombstones: make(map[string]struct{}),
		index:      quadtree.New[string](cfg.Bounds, cfg.MaxObjects, cfg.MaxLevels),
	}
}

func (s *Scene) Config() Config { return s.cfg }

// Add stores a closed stroke and indexes it. Ids of removed strokes are
// never accepted again.
func (s *Scene) Add(st *Stroke) error {
	if _, gone := s.tombstones[st.ID]; gone {
		return fmt.Errorf("%s: %w", st.ID, ErrStrokeRemoved)
	}
	if _, dup := s.strokes[st.ID]; dup {
		return fmt.Errorf("%s: %w", st.ID, ErrDuplicateStroke)
	}
	if st.State() != StateClosed {
		return fmt.Errorf("%s: %w", st.ID, ErrStrokeNotClosed)
	}
	s.strokes[st.ID] = st
	s.order = append(s.order, st.ID)
	s.index.Insert(quadtree.Item[string]{Bounds: st.Bounds(), Value: st.ID})
	return nil
}

func (s *Scene) Get(id string) (*Stroke, bool) {
	st, ok := s.strokes[id]
	return st, ok
}

// Known reports whether id is in the scene or was removed from it.
func (s *Scene) Known(id string) bool {
	if _, ok := s.strokes[id]; ok {
		return true
	}
	_, ok := s.tombstones[id]
	return ok
}

// Remove marks the stroke removed and drops its index entries.
func (s *Scene) Remove(id string) bool {
	st, ok := s.strokes[id]
	if !ok {
		return false
	}
	st.markRemoved()
	delete(s.strokes, id)
	s.tombstones[id] = struct{}{}
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	s.index.Remove(id)
	return true
}

// Tombstone retires id without it ever having reached the scene, as happens
// to a stroke removed while still being drawn.
func (s *Scene) Tombstone(id string) {
	if _, ok := s.strokes[id]; ok {
		s.Remove(id)
		return
	}
	s.tombstones[id] = struct{}{}
}

// RemoveOwnedBy removes every stroke drawn by owner and returns their ids in
// drawing order.
func (s *Scene) RemoveOwnedBy(owner string) []string {
	var ids []string
	for _, id := range s.order {
		if s.strokes[id].OwnerID == owner {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		s.Remove(id)
	}
	return ids
}

// Clear removes every stroke.
func (s *Scene) Clear() {
	for _, st := range s.strokes {
		st.markRemoved()
		s.tombstones[st.ID] = struct{}{}
	}
	clear(s.strokes)
	s.order = nil
	s.index.Clear()
}

func (s *Scene) Len() int { return len(s.strokes) }

// Strokes returns the live strokes in the order they were added.
func (s *Scene) Strokes() []*Stroke {
	out := make([]*Stroke, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.strokes[id])
	}
	return out
}

// Query returns the strokes whose bounds overlap r, in drawing order.
func (s *Scene) Query(r geom.Rect) []*Stroke {
	hits := make(map[string]struct{})
	for _, it := range s.index.Retrieve(r) {
		if it.Bounds.Intersects(r) {
			hits[it.Value] = struct{}{}
		}
	}
	out := make([]*Stroke, 0, len(hits))
	for _, id := range s.order {
		if _, ok := hits[id]; ok {
			out = append(out, s.strokes[id])
		}
	}
	return out
}

type Detail int

const (
	DetailFull Detail = iota
	DetailSimplified
)

func (d Detail) String() string {
	if d == DetailSimplified {
		return "simplified"
	}
	return "full"
}

// Visible is a stroke selected for drawing together with the point list the
// renderer should use.
type Visible struct {
	Stroke *Stroke
	Detail Detail
	Points []geom.Point
}

// Visible culls the scene to viewport and picks a level of detail per
// stroke based on its distance from viewer.
func (s *Scene) Visible(viewport geom.Rect, viewer geom.Point) []Visible {
	strokes := s.Query(viewport)
	out := make([]Visible, 0, len(strokes))
	for _, st := range strokes {
		v := Visible{Stroke: st, Detail: DetailFull, Points: st.Points()}
		if s.cfg.LODDistance > 0 && st.Bounds().Center().Dist(viewer) > s.cfg.LODDistance {
			v.Detail = DetailSimplified
			v.Points = st.Simplified()
		}
		out = append(out, v)
	}
	return out
}
