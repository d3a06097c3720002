package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

const keyEsc = 27

// Window shows annotated frames in a HighGUI window. ESC, 'q' or closing the
// window asks the loop to stop.
type Window struct {
	win  *gocv.Window
	exit bool
}

// NewWindow opens the preview window. It must be called from the main thread,
// which main keeps locked to the main goroutine.
func NewWindow() *Window {
	return &Window{win: gocv.NewWindow(WindowTitle)}
}

func (w *Window) Frame(img scanner.Image, codes []types.DetectedCode, sel *scanner.Selection) error {
	mat, ok := matOf(img)
	if !ok {
		return fmt.Errorf("window: unsupported frame type %T", img)
	}
	annotate(mat, codes, sel)
	w.show(*mat)
	return nil
}

func (w *Window) Placeholder(message string) error {
	mat := placeholder(message)
	defer mat.Close()
	w.show(mat)
	return nil
}

// show also pumps the HighGUI event queue, which is where keypresses arrive.
func (w *Window) show(mat gocv.Mat) {
	w.win.IMShow(mat)
	switch w.win.WaitKey(1) {
	case keyEsc, 'q':
		w.exit = true
	}
	if !w.win.IsOpen() {
		w.exit = true
	}
}

func (w *Window) ExitRequested() bool { return w.exit }

func (w *Window) Close() error { return w.win.Close() }
