package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// Window title of the live preview.
const WindowTitle = "ESP32 CAM QR Scanner"

var (
	green = color.RGBA{0, 255, 0, 255}
	red   = color.RGBA{255, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
)

// annotate draws the codes the selector walked over: a red box for every
// undecodable one and a green outline plus the payload for the selected one.
func annotate(mat *gocv.Mat, codes []types.DetectedCode, sel *scanner.Selection) {
	last := len(codes) - 1
	if sel != nil {
		last = sel.Index
	}

	for i := 0; i <= last && i < len(codes); i++ {
		c := codes[i]
		box := c.Boundary.Bounds()
		label := image.Pt(box.Min.X, box.Min.Y-10)

		if !c.Decodable {
			gocv.Rectangle(mat, box, red, 2)
			gocv.PutText(mat, "Undecodable", label, gocv.FontHersheyPlain, 1, red, 1)
			continue
		}
		if sel == nil || i != sel.Index {
			continue
		}

		outline := c.Boundary
		if len(outline) > 4 {
			outline = outline.Hull()
		}
		if len(outline) > 1 {
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{outline})
			gocv.Polylines(mat, pv, true, green, 2)
			pv.Close()
		}
		gocv.PutText(mat, sel.Payload, label, gocv.FontHersheyPlain, 1.2, red, 2)
	}
}

// placeholder returns a 640x480 black frame carrying message.
func placeholder(message string) gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	gocv.PutText(&mat, message, image.Pt(50, 240), gocv.FontHersheyPlain, 1.5, white, 1)
	return mat
}

// matOf extracts the pixel buffer of a decoded frame.
func matOf(img scanner.Image) (*gocv.Mat, bool) {
	f, ok := img.(*Frame)
	if !ok {
		return nil, false
	}
	return &f.Mat, true
}
