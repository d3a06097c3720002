package scanner

import (
	"errors"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// Renderers fans every call out to several renderers, e.g. a window and an
// MJPEG preview at once. Errors are joined; every renderer still gets the call.
type Renderers []Renderer

func (rs Renderers) Frame(img Image, codes []types.DetectedCode, sel *Selection) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.Frame(img, codes, sel))
	}
	return errors.Join(errs...)
}

func (rs Renderers) Placeholder(message string) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.Placeholder(message))
	}
	return errors.Join(errs...)
}

// ExitRequested reports true as soon as any renderer asks to stop.
func (rs Renderers) ExitRequested() bool {
	for _, r := range rs {
		if r.ExitRequested() {
			return true
		}
	}
	return false
}

func (rs Renderers) Close() error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
