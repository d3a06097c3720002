// Package display renders scanner activity on a terminal when no window is wanted.
package display

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// Terminal shows a spinner with a running frame count and the last payload.
type Terminal struct {
	bar         *progressbar.ProgressBar
	w           io.Writer
	frames      int
	description string
}

func NewTerminal(w io.Writer) *Terminal {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("📷 Scanning"),
		progressbar.OptionSetWriter(w), // Write bar to Stderr
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	return &Terminal{bar: bar, w: w, description: "📷 Scanning"}
}

func (t *Terminal) Frame(img scanner.Image, codes []types.DetectedCode, sel *scanner.Selection) error {
	t.frames++
	switch {
	case sel != nil:
		t.describe(fmt.Sprintf("✅ %s (%s)", sel.Payload, sel.Code.Symbology))
	case len(codes) > 0:
		t.describe(fmt.Sprintf("⚠️  %d unreadable code(s)", len(codes)))
	default:
		t.describe("🔍 No code in frame")
	}
	return t.bar.Add(1)
}

func (t *Terminal) Placeholder(message string) error {
	t.describe("💤 " + message)
	return nil
}

func (t *Terminal) describe(d string) {
	if d == t.description {
		return
	}
	t.description = d
	t.bar.Describe(d)
}

func (t *Terminal) ExitRequested() bool { return false }

func (t *Terminal) Close() error {
	err := t.bar.Finish()
	fmt.Fprintln(t.w)
	return err
}
