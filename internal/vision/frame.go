// Package vision holds the OpenCV side of the scanner: JPEG decoding and the
// preview renderers.
package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
)

// ErrEmptyFrame is returned when OpenCV accepts the buffer but yields no pixels.
var ErrEmptyFrame = errors.New("decoded frame is empty")

// Frame is a decoded BGR image that remembers the bytes it came from.
type Frame struct {
	Mat gocv.Mat
	raw []byte
}

// Bytes returns the JPEG the frame was decoded from.
func (f *Frame) Bytes() []byte { return f.raw }

func (f *Frame) ToImage() (image.Image, error) { return f.Mat.ToImage() }

func (f *Frame) Close() error { return f.Mat.Close() }

// Decoder decodes JPEG bytes with gocv.IMDecode.
type Decoder struct{}

func (Decoder) Decode(data []byte) (scanner.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("imdecode: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}
	return &Frame{Mat: mat, raw: data}, nil
}
