package types

import (
	"errors"
	"image"
	"reflect"
	"testing"
)

func TestNewDetectedCode(t *testing.T) {
	tests := []struct {
		name          string
		raw           []byte
		wantDecodable bool
		wantText      string
	}{
		{"Plain EAN", []byte("4006381333931"), true, "4006381333931"},
		{"Surrounding whitespace", []byte("  12345\n"), true, "12345"},
		{"Only whitespace", []byte("   "), true, ""},
		{"Invalid UTF-8", []byte{0xff, 0xfe, 0x41}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDetectedCode("EAN_13", tt.raw, nil)
			if c.Decodable != tt.wantDecodable {
				t.Errorf("Decodable = %v, want %v", c.Decodable, tt.wantDecodable)
			}
			if got := c.Text(); got != tt.wantText {
				t.Errorf("Text() = %q, want %q", got, tt.wantText)
			}
		})
	}
}

func TestPolygonBounds(t *testing.T) {
	p := Polygon{{10, 20}, {40, 5}, {35, 60}, {2, 30}}
	want := image.Rect(2, 5, 40, 60)
	if got := p.Bounds(); got != want {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}

	if got := (Polygon{}).Bounds(); got != (image.Rectangle{}) {
		t.Errorf("empty Bounds() = %v, want zero rectangle", got)
	}
}

func TestPolygonHull(t *testing.T) {
	tests := []struct {
		name string
		in   Polygon
		want Polygon
	}{
		{
			name: "Square with interior and collinear points",
			in:   Polygon{{2, 2}, {0, 4}, {4, 0}, {2, 0}, {4, 4}, {0, 0}},
			want: Polygon{{0, 0}, {4, 0}, {4, 4}, {0, 4}},
		},
		{
			name: "Already convex quad",
			in:   Polygon{{0, 0}, {10, 0}, {10, 5}, {0, 5}},
			want: Polygon{{0, 0}, {10, 0}, {10, 5}, {0, 5}},
		},
		{
			name: "Duplicate points collapse",
			in:   Polygon{{1, 1}, {1, 1}, {3, 3}},
			want: Polygon{{1, 1}, {3, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Hull(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Hull() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutcomeAdvances(t *testing.T) {
	tests := []struct {
		outcome DispatchOutcome
		want    bool
	}{
		{DispatchOutcome{Kind: Sent, StatusCode: 200}, true},
		{DispatchOutcome{Kind: RejectedFinal, StatusCode: 404}, true},
		{DispatchOutcome{Kind: RejectedRetryable, StatusCode: 500}, false},
		{DispatchOutcome{Kind: NetworkFailure, Err: errors.New("connection refused")}, false},
	}

	for _, tt := range tests {
		if got := tt.outcome.Advances(); got != tt.want {
			t.Errorf("%v.Advances() = %v, want %v", tt.outcome.Kind, got, tt.want)
		}
	}
}
