package export

import (
	"io"
	"math"
	"os"

	"github.com/jung-kurt/gofpdf"

	"github.com/DoyleJ11/whiteboard-sync/internal/geom"
	"github.com/DoyleJ11/whiteboard-sync/internal/protocol"
	"github.com/DoyleJ11/whiteboard-sync/internal/smooth"
)

const (
	pageW  = 210.0 // A4, mm
	pageH  = 297.0
	margin = 10.0
)

// WritePDF draws strokes onto a single A4 page, scaled to fit inside the
// margins. Strokes are smoothed the same way the board renders them.
func WritePDF(w io.Writer, strokes []protocol.StrokeData) error {
	p := gofpdf.New("P", "mm", "A4", "")
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	scale, origin := fit(strokes)
	for _, st := range strokes {
		pts := points(st)
		if len(pts) == 0 {
			continue
		}
		r, g, b := rgb(uint32(st.Color))
		p.SetDrawColor(r, g, b)
		p.SetFillColor(r, g, b)
		p.SetAlpha(clamp01(st.Opacity), "Normal")

		if len(pts) == 1 {
			x, y := place(pts[0], scale, origin)
			p.Circle(x, y, math.Max(st.Width*scale/2, 0.1), "F")
			continue
		}

		brush := smooth.DefaultBrush()
		if st.Width > 0 {
			brush.BaseWidth = st.Width
		}
		verts := smooth.Smooth(pts, brush)
		for i := 1; i < len(verts); i++ {
			x0, y0 := place(verts[i-1].Pos, scale, origin)
			x1, y1 := place(verts[i].Pos, scale, origin)
			p.SetLineWidth(math.Max(verts[i].Width*scale, 0.1))
			p.Line(x0, y0, x1, y1)
		}
	}
	p.SetAlpha(1, "Normal")

	if err := p.Error(); err != nil {
		return err
	}
	return p.Output(w)
}

// SavePDF writes the page to path.
func SavePDF(path string, strokes []protocol.StrokeData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePDF(f, strokes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// fit returns the board-to-page scale and the board point mapped to the top
// left margin corner.
func fit(strokes []protocol.StrokeData) (float64, geom.Point) {
	var all []geom.Point
	pad := 0.0
	for _, st := range strokes {
		all = append(all, points(st)...)
		pad = math.Max(pad, st.Width/2)
	}
	if len(all) == 0 {
		return 1, geom.Point{}
	}
	box := geom.RectFromPoints(all).Inflate(pad)
	w, h := math.Max(box.W, 1), math.Max(box.H, 1)
	scale := math.Min((pageW-2*margin)/w, (pageH-2*margin)/h)
	return scale, geom.Pt(box.X, box.Y)
}

func place(pt geom.Point, scale float64, origin geom.Point) (float64, float64) {
	return margin + (pt.X-origin.X)*scale, margin + (pt.Y-origin.Y)*scale
}

func points(st protocol.StrokeData) []geom.Point {
	pts := make([]geom.Point, 0, len(st.Points)/2)
	for i := 0; i+1 < len(st.Points); i += 2 {
		pts = append(pts, geom.Pt(st.Points[i], st.Points[i+1]))
	}
	return pts
}

func rgb(c uint32) (int, int, int) {
	return int(c >> 16 & 0xff), int(c >> 8 & 0xff), int(c & 0xff)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
