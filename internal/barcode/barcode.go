// Package barcode locates and decodes QR codes and 1D barcodes with gozxing.
package barcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sort"
	"unicode/utf8"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// ErrNoPixels is returned when a frame cannot be converted to an image.Image.
var ErrNoPixels = errors.New("frame does not expose pixels")

// linearPad is the half-height given to 1D barcodes, which gozxing locates
// as a single scan line.
const linearPad = 20

// pixelFrame is any decoded frame that can hand out its pixels.
type pixelFrame interface {
	ToImage() (image.Image, error)
}

const (
	// A leftover strip narrower than this cannot hold another code.
	minCropDimension = 100
	maxCropDepth     = 4
)

// Detector runs a fixed set of readers over each frame.
type Detector struct {
	qr     multi.MultipleBarcodeReader
	single []gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewDetector returns a detector for QR codes and the common retail symbologies.
func NewDetector() *Detector {
	return &Detector{
		qr: multiqr.NewQRCodeMultiReader(),
		single: []gozxing.Reader{
			qrcode.NewQRCodeReader(),
			// EAN-13, EAN-8 and UPC-E; UPC-A is read as EAN-13 with a leading zero.
			oned.NewMultiFormatUPCEANReader(nil),
			oned.NewCode128Reader(),
			oned.NewCode39Reader(),
			oned.NewCode93Reader(),
			oned.NewITFReader(),
			oned.NewCodaBarReader(),
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Detect satisfies scanner.Detector.
func (d *Detector) Detect(img scanner.Image) ([]types.DetectedCode, error) {
	var pixels image.Image
	switch f := img.(type) {
	case pixelFrame:
		var err error
		if pixels, err = f.ToImage(); err != nil {
			return nil, fmt.Errorf("convert frame: %w", err)
		}
	case image.Image:
		pixels = f
	default:
		return nil, ErrNoPixels
	}
	return d.Scan(pixels)
}

// Scan returns every code found in img, ordered left to right.
func (d *Detector) Scan(img image.Image) ([]types.DetectedCode, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize frame: %w", err)
	}

	var hits []hit
	if results, err := d.qr.DecodeMultiple(bmp, d.hints); err == nil {
		for _, res := range results {
			hits = addHit(hits, res, 0, 0)
		}
	}
	for _, r := range d.single {
		hits = d.decodeAll(r, bmp, 0, 0, 0, hits)
	}

	codes := make([]types.DetectedCode, 0, len(hits))
	for _, h := range hits {
		codes = append(codes, types.NewDetectedCode(symbology(h.format), h.payload, boundary(h.points)))
	}

	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i].Boundary.Bounds().Min.X < codes[j].Boundary.Bounds().Min.X
	})
	return codes, nil
}

type hit struct {
	format  gozxing.BarcodeFormat
	payload []byte
	points  []gozxing.ResultPoint
}

// decodeAll finds every code r can read in bmp by decoding once, then
// searching the strips left, right, above and below the hit.
// xOff and yOff place bmp within the original frame.
func (d *Detector) decodeAll(r gozxing.Reader, bmp *gozxing.BinaryBitmap, xOff, yOff, depth int, hits []hit) []hit {
	if depth > maxCropDepth {
		return hits
	}
	res, err := r.Decode(bmp, d.hints)
	r.Reset()
	if err != nil {
		// NotFound, checksum and format errors all mean "not this symbology".
		return hits
	}
	hits = addHit(hits, res, xOff, yOff)

	points := res.GetResultPoints()
	if len(points) == 0 || !bmp.IsCropSupported() {
		return hits
	}
	width, height := bmp.GetWidth(), bmp.GetHeight()
	minX, minY := float64(width), float64(height)
	maxX, maxY := 0.0, 0.0
	for _, p := range points {
		if p == nil {
			continue
		}
		minX, maxX = min(minX, p.GetX()), max(maxX, p.GetX())
		minY, maxY = min(minY, p.GetY()), max(maxY, p.GetY())
	}

	crop := func(left, top, w, h int) {
		sub, err := bmp.Crop(left, top, w, h)
		if err != nil {
			return
		}
		hits = d.decodeAll(r, sub, xOff+left, yOff+top, depth+1, hits)
	}
	if left := int(minX); left > minCropDimension {
		crop(0, 0, left, height)
	}
	if top := int(minY); top > minCropDimension {
		crop(0, 0, width, top)
	}
	if right := int(maxX + 0.5); right < width-minCropDimension {
		crop(right, 0, width-right, height)
	}
	if bottom := int(maxY + 0.5); bottom < height-minCropDimension {
		crop(0, bottom, width, height-bottom)
	}
	return hits
}

// addHit records res in frame coordinates unless the same code was already found.
func addHit(hits []hit, res *gozxing.Result, xOff, yOff int) []hit {
	p := payload(res)
	for _, h := range hits {
		if h.format == res.GetBarcodeFormat() && bytes.Equal(h.payload, p) {
			return hits
		}
	}
	var points []gozxing.ResultPoint
	for _, rp := range res.GetResultPoints() {
		if rp == nil {
			continue
		}
		points = append(points, gozxing.NewResultPoint(rp.GetX()+float64(xOff), rp.GetY()+float64(yOff)))
	}
	return append(hits, hit{format: res.GetBarcodeFormat(), payload: p, points: points})
}

// symbology names formats the way zbar does.
func symbology(f gozxing.BarcodeFormat) string {
	switch f {
	case gozxing.BarcodeFormat_QR_CODE:
		return "QRCODE"
	case gozxing.BarcodeFormat_EAN_13:
		return "EAN13"
	case gozxing.BarcodeFormat_EAN_8:
		return "EAN8"
	case gozxing.BarcodeFormat_UPC_A:
		return "UPCA"
	case gozxing.BarcodeFormat_UPC_E:
		return "UPCE"
	case gozxing.BarcodeFormat_CODE_128:
		return "CODE128"
	case gozxing.BarcodeFormat_CODE_39:
		return "CODE39"
	case gozxing.BarcodeFormat_CODE_93:
		return "CODE93"
	case gozxing.BarcodeFormat_ITF:
		return "I25"
	case gozxing.BarcodeFormat_CODABAR:
		return "CODABAR"
	default:
		return f.String()
	}
}

// payload prefers the raw byte segments when they are not valid UTF-8, so a
// binary QR payload is reported as undecodable instead of charset-guessed text.
func payload(res *gozxing.Result) []byte {
	text := []byte(res.GetText())
	segs, ok := res.GetResultMetadata()[gozxing.ResultMetadataType_BYTE_SEGMENTS].([][]byte)
	if !ok || len(segs) == 0 {
		return text
	}
	raw := bytes.Join(segs, nil)
	if utf8.Valid(raw) {
		return text
	}
	return raw
}

// boundary turns gozxing result points into a drawable polygon.
//
// QR codes report bottom-left, top-left and top-right finder centres (plus an
// optional alignment pattern); the fourth corner is completed from those.
// 1D barcodes report two points on a scan line, widened into a box.
func boundary(points []gozxing.ResultPoint) types.Polygon {
	pts := make([]image.Point, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		pts = append(pts, image.Pt(int(p.GetX()+0.5), int(p.GetY()+0.5)))
	}

	switch {
	case len(pts) == 0:
		return nil
	case len(pts) < 3:
		minX, maxX, y := pts[0].X, pts[0].X, 0
		for _, p := range pts {
			minX = min(minX, p.X)
			maxX = max(maxX, p.X)
			y += p.Y
		}
		y /= len(pts)
		return types.Polygon{
			{X: minX, Y: y - linearPad},
			{X: maxX, Y: y - linearPad},
			{X: maxX, Y: y + linearPad},
			{X: minX, Y: y + linearPad},
		}
	default:
		bl, tl, tr := pts[0], pts[1], pts[2]
		br := bl.Add(tr).Sub(tl)
		return types.Polygon{tl, tr, br, bl}
	}
}
