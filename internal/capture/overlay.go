package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/veloma/internal/detector"
)

// Overlay colors.
var (
	colorWrist  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	colorIndex  = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	colorJoint  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorPalm   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	colorGuide  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorActive = color.RGBA{R: 255, G: 152, B: 0, A: 255}
	colorText   = color.RGBA{R: 230, G: 230, B: 230, A: 255}
)

// Guides describes the note boundaries drawn over the preview in discrete
// mode. Edges are normalized positions in [0,1] inside the pitch region
// [RegionStart, RegionEnd] of the frame width, or of the frame height when
// Horizontal is set.
type Guides struct {
	Horizontal  bool
	RegionStart float64
	RegionEnd   float64
	Edges       []float64
	Labels      []string
	Active      int
}

// DrawHands draws every landmark and the palm center of each hand.
func DrawHands(frame *gocv.Mat, hands []detector.HandLandmarks) {
	if frame == nil || frame.Empty() {
		return
	}
	w, h := float64(frame.Cols()), float64(frame.Rows())

	for i := range hands {
		hand := &hands[i]
		for j, p := range hand.Points {
			c := colorJoint
			switch {
			case j == detector.Wrist:
				c = colorWrist
			case j >= detector.IndexMCP && j <= detector.IndexTip:
				c = colorIndex
			}
			gocv.Circle(frame, image.Pt(int(p.X*w), int(p.Y*h)), 5, c, -1)
		}
		pc := hand.PalmCenter()
		gocv.Circle(frame, image.Pt(int(pc.X*w), int(pc.Y*h)), 10, colorPalm, -1)
	}
}

// DrawGuides draws note boundaries and labels across the pitch region.
func DrawGuides(frame *gocv.Mat, g Guides) {
	if frame == nil || frame.Empty() || len(g.Edges) < 2 {
		return
	}
	w, h := frame.Cols(), frame.Rows()
	length := float64(w)
	if g.Horizontal {
		length = float64(h)
	}
	span := g.RegionEnd - g.RegionStart

	at := func(edge float64) int {
		return int((g.RegionStart + edge*span) * length)
	}
	line := func(pos int) (image.Point, image.Point) {
		if g.Horizontal {
			return image.Pt(0, pos), image.Pt(w, pos)
		}
		return image.Pt(pos, 0), image.Pt(pos, h)
	}

	for i, edge := range g.Edges {
		pos := at(edge)
		from, to := line(pos)
		gocv.Line(frame, from, to, colorGuide, 1)
		if i >= len(g.Edges)-1 || i >= len(g.Labels) {
			continue
		}
		c := colorGuide
		label := image.Pt(pos+3, 24)
		if g.Horizontal {
			label = image.Pt(w-48, pos+16)
		}
		if i == g.Active {
			c = colorActive
			next := at(g.Edges[i+1])
			if g.Horizontal {
				gocv.Rectangle(frame, image.Rect(w-6, pos, w, next), c, -1)
			} else {
				gocv.Rectangle(frame, image.Rect(pos, 0, next, 6), c, -1)
			}
		}
		gocv.PutText(frame, g.Labels[i], label, gocv.FontHersheySimplex, 0.4, c, 1)
	}
}

// DrawStatus writes the current pitch and volume in the bottom-left corner.
func DrawStatus(frame *gocv.Mat, label string, pitch, volume float64) {
	if frame == nil || frame.Empty() {
		return
	}
	y := frame.Rows() - 40
	gocv.PutText(frame, label, image.Pt(10, y), gocv.FontHersheySimplex, 0.6, colorText, 2)
	gocv.PutText(frame, fmt.Sprintf("Pitch: %.1f  Volume: %.2f", pitch, volume), image.Pt(10, y+25), gocv.FontHersheySimplex, 0.6, colorText, 2)
}

// EncodeJPEG encodes the frame for streaming.
func EncodeJPEG(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
