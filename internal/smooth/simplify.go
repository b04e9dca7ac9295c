package smooth

import "github.com/DoyleJ11/whiteboard-sync/internal/geom"

// Simplify reduces a polyline with the Ramer–Douglas–Peucker algorithm.
// The first and last points are always kept. The input is not modified.
func Simplify(points []geom.Point, tolerance float64) []geom.Point {
	if len(points) <= 2 || tolerance <= 0 {
		return append([]geom.Point(nil), points...)
	}

	keep := make([]bool, len(points))
	keep[0], keep[len(points)-1] = true, true

	type span struct{ lo, hi int }
	stack := []span{{0, len(points) - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		idx, worst := -1, tolerance
		for i := s.lo + 1; i < s.hi; i++ {
			if d := geom.SegmentDist(points[i], points[s.lo], points[s.hi]); d > worst {
				idx, worst = i, d
			}
		}
		if idx < 0 {
			continue
		}
		keep[idx] = true
		stack = append(stack, span{s.lo, idx}, span{idx, s.hi})
	}

	out := make([]geom.Point, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}
