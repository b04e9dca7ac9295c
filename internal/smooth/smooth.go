package smooth

import (
	"math"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
)

// Brush controls how raw input is turned into a variable-width polyline.
//
// Widths are derived from drawing speed: slow motion approaches
// BaseWidth*MaxSpeedWidth, fast motion approaches
// BaseWidth*(MaxSpeedWidth-(MaxSpeedWidth-MinSpeedWidth)*SpeedSensitivity).
type Brush struct {
	BaseWidth          float64
	SpeedSensitivity   float64 // 0 disables thinning, 1 applies it fully
	MinSegments        int
	MaxSegments        int
	MinSegmentDistance float64

	MinSpeedWidth float64 // width ratio at full speed
	MaxSpeedWidth float64 // width ratio at rest
	MaxSpeed      float64 // distance per sample treated as "full speed"
}

func DefaultBrush() Brush {
	return Brush{
		BaseWidth:          2,
		SpeedSensitivity:   1,
		MinSegments:        2,
		MaxSegments:        16,
		MinSegmentDistance: 2,
		MinSpeedWidth:      0.4,
		MaxSpeedWidth:      1,
		MaxSpeed:           40,
	}
}

// Vertex is one point of the smoothed polyline.
type Vertex struct {
	Pos   geom.Point
	Width float64
}

// Smooth converts raw input points into a smoothed polyline. Every triple
// of consecutive points becomes a quadratic Bézier between the midpoints of
// its two edges, with the middle point as control. The output starts at the
// first input point and ends at the last one. The result depends only on
// the arguments.
func Smooth(points []geom.Point, b Brush) []Vertex {
	if len(points) < 2 {
		return nil
	}

	widths := speedWidths(points, b)
	if len(points) == 2 {
		return []Vertex{
			{Pos: points[0], Width: widths[0]},
			{Pos: points[1], Width: widths[1]},
		}
	}

	_, hi := segmentBounds(b)
	out := make([]Vertex, 0, (len(points)-2)*hi+3)
	out = append(out, Vertex{Pos: points[0], Width: widths[0]})

	var last Vertex
	for i := 2; i < len(points); i++ {
		p0, p1, p2 := points[i-2], points[i-1], points[i]
		m1, m2 := p0.Mid(p1), p1.Mid(p2)
		w1 := (widths[i-2] + widths[i-1]) / 2
		w2 := (widths[i-1] + widths[i]) / 2

		curve := geom.QuadBez{P0: m1, P1: p1, P2: m2}
		n := segmentCount(m1.Dist(m2), b)
		for j := 0; j < n; j++ {
			t := float64(j) / float64(n)
			out = append(out, Vertex{
				Pos:   curve.Eval(t),
				Width: geom.QuadBlend(w1, widths[i-1], w2, t),
			})
		}
		last = Vertex{Pos: m2, Width: w2}
	}

	out = append(out, last)
	out = append(out, Vertex{Pos: points[len(points)-1], Width: widths[len(widths)-1]})
	return out
}

// segmentBounds clamps the brush's segment range to at least one segment.
func segmentBounds(b Brush) (lo, hi int) {
	lo = max(b.MinSegments, 1)
	return lo, max(b.MaxSegments, lo)
}

func segmentCount(dist float64, b Brush) int {
	lo, hi := segmentBounds(b)
	if b.MinSegmentDistance <= 0 {
		return hi
	}
	n := int(dist / b.MinSegmentDistance)
	return min(max(n, lo), hi)
}

// speedWidths computes the speed-based width of every input point. Speed at
// a point is the mean of the (up to three) edge lengths around it.
func speedWidths(points []geom.Point, b Brush) []float64 {
	n := len(points)
	dist := make([]float64, n)
	for i := 1; i < n; i++ {
		dist[i] = points[i-1].Dist(points[i])
	}
	dist[0] = dist[1]

	widths := make([]float64, n)
	for i := range points {
		var sum float64
		var cnt int
		for j := i - 1; j <= i+1; j++ {
			if j < 0 || j >= n {
				continue
			}
			sum += dist[j]
			cnt++
		}
		widths[i] = widthForSpeed(sum/float64(cnt), b)
	}
	return widths
}

func widthForSpeed(speed float64, b Brush) float64 {
	norm := 1.0
	if b.MaxSpeed > 0 {
		norm = math.Min(speed/b.MaxSpeed, 1)
	}
	ratio := b.MinSpeedWidth + (b.MaxSpeedWidth-b.MinSpeedWidth)*(1-easeInOutQuad(norm)*b.SpeedSensitivity)
	return b.BaseWidth * ratio
}

func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	u := -2*t + 2
	return 1 - u*u/2
}
