package barcode

import (
	"image"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// matFrame mimics a decoded camera frame that converts to image.Image.
type matFrame struct{ img image.Image }

func (f matFrame) ToImage() (image.Image, error) { return f.img, nil }
func (f matFrame) Close() error                  { return nil }

type opaqueFrame struct{}

func (opaqueFrame) Close() error { return nil }

func TestDetectQRCode(t *testing.T) {
	matrix, err := qrcode.NewQRCodeWriter().Encode("https://shop.example/p?id=7", gozxing.BarcodeFormat_QR_CODE, 300, 300, nil)
	if err != nil {
		t.Fatalf("Failed to encode QR code: %v", err)
	}

	codes, err := NewDetector().Detect(matFrame{img: matrix})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(codes) != 1 {
		t.Fatalf("Expected 1 code, got %d: %+v", len(codes), codes)
	}
	if codes[0].Symbology != "QRCODE" || codes[0].Text() != "https://shop.example/p?id=7" {
		t.Errorf("Unexpected code: %+v", codes[0])
	}
	if len(codes[0].Boundary) != 4 {
		t.Errorf("Expected a 4-corner boundary, got %v", codes[0].Boundary)
	}
}

func TestDetectEAN13(t *testing.T) {
	matrix, err := oned.NewEAN13Writer().Encode("4006381333931", gozxing.BarcodeFormat_EAN_13, 300, 120, nil)
	if err != nil {
		t.Fatalf("Failed to encode EAN-13: %v", err)
	}

	codes, err := NewDetector().Scan(matrix)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(codes) == 0 {
		t.Fatal("Expected the EAN-13 to be found")
	}
	if codes[0].Text() != "4006381333931" {
		t.Errorf("Expected 4006381333931, got %q (%s)", codes[0].Text(), codes[0].Symbology)
	}
}

func TestDetectTwoQRCodesLeftToRight(t *testing.T) {
	canvas := image.NewGray(image.Rect(0, 0, 470, 220))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	// The right code is drawn first; order must come from position.
	for _, c := range []struct {
		text string
		x    int
	}{{"RIGHT", 250}, {"LEFT", 10}} {
		matrix, err := qrcode.NewQRCodeWriter().Encode(c.text, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
		if err != nil {
			t.Fatalf("Failed to encode %s: %v", c.text, err)
		}
		draw.Draw(canvas, image.Rect(c.x, 10, c.x+200, 210), matrix, image.Point{}, draw.Src)
	}

	codes, err := NewDetector().Scan(canvas)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("Expected 2 codes, got %d: %+v", len(codes), codes)
	}
	if codes[0].Text() != "LEFT" || codes[1].Text() != "RIGHT" {
		t.Errorf("Expected LEFT then RIGHT, got %q then %q", codes[0].Text(), codes[1].Text())
	}
	if codes[0].Boundary.Bounds().Max.X > 250 || codes[1].Boundary.Bounds().Min.X < 250 {
		t.Errorf("Boundaries not in frame coordinates: %v, %v", codes[0].Boundary, codes[1].Boundary)
	}
}

func TestDetectUPCAOnce(t *testing.T) {
	matrix, err := oned.NewUPCAWriter().Encode("036000291452", gozxing.BarcodeFormat_UPC_A, 300, 120, nil)
	if err != nil {
		t.Fatalf("Failed to encode UPC-A: %v", err)
	}

	codes, err := NewDetector().Scan(matrix)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(codes) != 1 {
		t.Fatalf("Expected one entry for one barcode, got %d: %+v", len(codes), codes)
	}
	if codes[0].Symbology != "EAN13" || codes[0].Text() != "0036000291452" {
		t.Errorf("Unexpected code: %s %q", codes[0].Symbology, codes[0].Text())
	}
}

func TestSymbology(t *testing.T) {
	tests := []struct {
		format gozxing.BarcodeFormat
		want   string
	}{
		{gozxing.BarcodeFormat_QR_CODE, "QRCODE"},
		{gozxing.BarcodeFormat_EAN_13, "EAN13"},
		{gozxing.BarcodeFormat_ITF, "I25"},
		{gozxing.BarcodeFormat_CODE_128, "CODE128"},
	}
	for _, tt := range tests {
		if got := symbology(tt.format); got != tt.want {
			t.Errorf("symbology(%v) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestDetectBlankFrame(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 320, 240))
	for i := range blank.Pix {
		blank.Pix[i] = 0xFF
	}

	codes, err := NewDetector().Scan(blank)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(codes) != 0 {
		t.Errorf("Expected no codes on a blank frame, got %+v", codes)
	}
}

func TestDetectOpaqueFrame(t *testing.T) {
	if _, err := NewDetector().Detect(opaqueFrame{}); err != ErrNoPixels {
		t.Errorf("Expected ErrNoPixels, got %v", err)
	}
}

func TestBoundary(t *testing.T) {
	tests := []struct {
		name   string
		points []gozxing.ResultPoint
		want   types.Polygon
	}{
		{
			name:   "No points",
			points: nil,
			want:   nil,
		},
		{
			name: "Linear scan line",
			points: []gozxing.ResultPoint{
				gozxing.NewResultPoint(10, 50),
				gozxing.NewResultPoint(110, 50),
			},
			want: types.Polygon{{10, 30}, {110, 30}, {110, 70}, {10, 70}},
		},
		{
			name: "QR finder patterns",
			points: []gozxing.ResultPoint{
				gozxing.NewResultPoint(20, 120), // bottom-left
				gozxing.NewResultPoint(20, 20),  // top-left
				gozxing.NewResultPoint(120, 20), // top-right
			},
			want: types.Polygon{{20, 20}, {120, 20}, {120, 120}, {20, 120}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := boundary(tt.points)
			if len(got) != len(tt.want) {
				t.Fatalf("boundary() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("boundary()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
