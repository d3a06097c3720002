package types

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"
	"unicode/utf8"
)

// DetectedCode is a single optical code found in a frame.
// Decodable is false when Raw is not valid UTF-8; such codes are drawn but never dispatched.
type DetectedCode struct {
	Symbology string
	Raw       []byte
	Boundary  Polygon
	Decodable bool
}

// NewDetectedCode builds a DetectedCode and derives Decodable from the payload bytes.
func NewDetectedCode(symbology string, raw []byte, boundary Polygon) DetectedCode {
	return DetectedCode{
		Symbology: symbology,
		Raw:       raw,
		Boundary:  boundary,
		Decodable: utf8.Valid(raw),
	}
}

// Text returns the trimmed payload, or "" for undecodable codes.
func (c DetectedCode) Text() string {
	if !c.Decodable {
		return ""
	}
	return strings.TrimSpace(string(c.Raw))
}

// Polygon is the boundary of a code in pixel coordinates. It may be non-convex
// and may have more than four vertices (1D barcodes report scan-line points).
type Polygon []image.Point

// Bounds returns the smallest rectangle containing every vertex.
func (p Polygon) Bounds() image.Rectangle {
	if len(p) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: p[0], Max: p[0]}
	for _, pt := range p[1:] {
		if pt.X < r.Min.X {
			r.Min.X = pt.X
		}
		if pt.Y < r.Min.Y {
			r.Min.Y = pt.Y
		}
		if pt.X > r.Max.X {
			r.Max.X = pt.X
		}
		if pt.Y > r.Max.Y {
			r.Max.Y = pt.Y
		}
	}
	return r
}

// Hull returns the convex hull in counter-clockwise order (monotone chain).
// Polygons with fewer than three distinct points are returned deduplicated.
func (p Polygon) Hull() Polygon {
	pts := make([]image.Point, len(p))
	copy(pts, p)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	uniq := pts[:0]
	for i, pt := range pts {
		if i == 0 || pt != pts[i-1] {
			uniq = append(uniq, pt)
		}
	}
	if len(uniq) < 3 {
		return Polygon(uniq)
	}

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make(Polygon, 0, 2*len(uniq))
	for _, pt := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		pt := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

// OutcomeKind classifies the result of a dispatch attempt.
type OutcomeKind int

const (
	Sent OutcomeKind = iota
	RejectedFinal
	RejectedRetryable
	NetworkFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Sent:
		return "sent"
	case RejectedFinal:
		return "rejected-final"
	case RejectedRetryable:
		return "rejected-retryable"
	case NetworkFailure:
		return "network-failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// DispatchOutcome is what the backend made of a payload.
type DispatchOutcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       string
	Err        error
}

// Advances reports whether the outcome counts as handled for debounce purposes.
func (o DispatchOutcome) Advances() bool {
	return o.Kind == Sent || o.Kind == RejectedFinal
}

var (
	// ErrNoFrame is returned by a frame source when the device reports that nothing is in view.
	ErrNoFrame = errors.New("no frame available")
	// ErrUnexpectedStatus is returned by a frame source for any status other than 200 or 204.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
