package session

import (
	"maps"
	"slices"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/scene"
	"github.com/DoyleJ11/whiteboard-sync/internal/smooth"
)

// Rendered is one stroke prepared for drawing.
type Rendered struct {
	ID         string
	OwnerID    string
	Properties scene.Properties
	Detail     scene.Detail
	Open       bool
	Vertices   []smooth.Vertex
}

func (s *Session) render(viewport geom.Rect, viewer geom.Point) []Rendered {
	var out []Rendered
	for _, v := range s.scene.Visible(viewport, viewer) {
		out = append(out, Rendered{
			ID:         v.Stroke.ID,
			OwnerID:    v.Stroke.OwnerID,
			Properties: v.Stroke.Properties,
			Detail:     v.Detail,
			Vertices:   smooth.Smooth(v.Points, s.brushFor(v.Stroke.Properties)),
		})
	}

	open := s.rec.OpenStrokes()
	for _, id := range slices.Sorted(maps.Keys(s.local)) {
		open = append(open, s.local[id])
	}
	for _, st := range open {
		if !st.Bounds().Intersects(viewport) {
			continue
		}
		out = append(out, Rendered{
			ID:         st.ID,
			OwnerID:    st.OwnerID,
			Properties: st.Properties,
			Open:       true,
			Vertices:   smooth.Smooth(st.Points(), s.brushFor(st.Properties)),
		})
	}
	return out
}

func (s *Session) brushFor(p scene.Properties) smooth.Brush {
	b := s.opts.Brush
	if p.Width > 0 {
		b.BaseWidth = p.Width
	}
	return b
}
