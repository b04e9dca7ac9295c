package geom

import "math"

// Point is a recorded input sample. Z carries pen pressure when the input
// device reports it and is zero otherwise.
type Point struct {
	X, Y, Z float64
}

// Pt is a convenience constructor for a 2D point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Mul(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Mid returns the point halfway between p and q.
func (p Point) Mid(q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Rect is an axis-aligned rectangle. Y grows downwards, so Y is the top edge.
type Rect struct {
	X, Y, W, H float64
}

// RectFromPoints returns the bounding box of pts. An empty slice yields the
// zero Rect.
func RectFromPoints(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Inflate grows the rectangle by d on every side.
func (r Rect) Inflate(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, W: r.W + 2*d, H: r.H + 2*d}
}

// Intersects reports whether r and o overlap. Touching edges count as
// overlap so degenerate (zero-area) rectangles are still found.
func (r Rect) Intersects(o Rect) bool {
	return !(r.Right() < o.X || o.Right() < r.X || r.Bottom() < o.Y || o.Bottom() < r.Y)
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// QuadBez is a quadratic Bézier curve with control point P1.
type QuadBez struct {
	P0, P1, P2 Point
}

// Eval evaluates the curve at t in [0, 1].
func (q QuadBez) Eval(t float64) Point {
	mt := 1 - t
	return Point{
		X: mt*mt*q.P0.X + 2*mt*t*q.P1.X + t*t*q.P2.X,
		Y: mt*mt*q.P0.Y + 2*mt*t*q.P1.Y + t*t*q.P2.Y,
	}
}

// QuadBlend applies the quadratic Bézier weights to three scalars.
func QuadBlend(a, b, c, t float64) float64 {
	mt := 1 - t
	return mt*mt*a + 2*mt*t*b + t*t*c
}

// SegmentDist returns the distance from p to the segment ab.
func SegmentDist(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist(a.Add(ab.Mul(t)))
}
