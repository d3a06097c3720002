// Package backend is the product lookup service the scanner posts to. It
// resolves barcodes against the catalog and pushes the result to connected
// frontends in real time.
package backend

import (
	"time"

	"github.com/google/uuid"
)

// Event types pushed to frontends.
const (
	EventProductAdded    = "product_added"
	EventProductNotFound = "product_not_found"
	EventScanError       = "scan_error"
)

// Event is the envelope every realtime message travels in.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data any       `json:"data"`
	Time time.Time `json:"time"`
}

func NewEvent(typ string, data any) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: typ,
		Data: data,
		Time: time.Now().UTC(),
	}
}

// Publisher delivers events to some audience.
type Publisher interface {
	Publish(ev Event) error
}
