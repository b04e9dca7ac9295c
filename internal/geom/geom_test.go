package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectFromPoints(t *testing.T) {
	r := RectFromPoints([]Point{Pt(3, 4), Pt(-1, 10), Pt(5, 2)})
	assert.Equal(t, Rect{X: -1, Y: 2, W: 6, H: 8}, r)
	assert.Equal(t, Rect{}, RectFromPoints(nil))
}

func TestRectIntersects(t *testing.T) {
	cases := []struct {
		name string
		a, b Rect
		want bool
	}{
		{"overlap", Rect{0, 0, 10, 10}, Rect{5, 5, 10, 10}, true},
		{"touching edge", Rect{0, 0, 10, 10}, Rect{10, 0, 5, 5}, true},
		{"disjoint", Rect{0, 0, 10, 10}, Rect{11, 11, 1, 1}, false},
		{"degenerate inside", Rect{0, 0, 10, 10}, Rect{4, 4, 0, 0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Intersects(tc.b))
			assert.Equal(t, tc.want, tc.b.Intersects(tc.a))
		})
	}
}

func TestQuadBezEndpoints(t *testing.T) {
	q := QuadBez{Pt(0, 0), Pt(5, 10), Pt(10, 0)}
	assert.Equal(t, Pt(0, 0), q.Eval(0))
	assert.Equal(t, Pt(10, 0), q.Eval(1))
	assert.Equal(t, Pt(5, 5), q.Eval(0.5))
	assert.InDelta(t, 2.0, QuadBlend(1, 2, 3, 0.5), 1e-12)
}

func TestSegmentDist(t *testing.T) {
	assert.InDelta(t, 5.0, SegmentDist(Pt(5, 5), Pt(0, 0), Pt(10, 0)), 1e-12)
	assert.InDelta(t, 5.0, SegmentDist(Pt(-3, 4), Pt(0, 0), Pt(10, 0)), 1e-12)
	assert.InDelta(t, 5.0, SegmentDist(Pt(3, 4), Pt(0, 0), Pt(0, 0)), 1e-12)
}
