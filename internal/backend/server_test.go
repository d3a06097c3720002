package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeCatalog struct {
	products map[string]store.Product
	err      error
}

func (c *fakeCatalog) FindByBarcode(ctx context.Context, barcode string) (store.Product, error) {
	if c.err != nil {
		return store.Product{}, c.err
	}
	p, ok := c.products[barcode]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]store.Product{
		"4006381333931":               {ID: uuid.New(), Barcode: "4006381333931", Name: "Milk 1L", Price: 1.29},
		"https://shop.example/p?id=7": {ID: uuid.New(), Barcode: "https://shop.example/p?id=7", Name: "Apples", Price: 2.5},
	}}
}

func TestHandleScan(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		catalogErr error
		wantStatus int
		wantEvent  string
		wantName   string
	}{
		{"Found", "/api/4006381333931", nil, http.StatusOK, EventProductAdded, "Milk 1L"},
		{"Escaped payload", "/api/https:%2F%2Fshop.example%2Fp%3Fid=7", nil, http.StatusOK, EventProductAdded, "Apples"},
		{"Not found", "/api/0000000000000", nil, http.StatusNotFound, EventProductNotFound, ""},
		{"Store failure", "/api/4006381333931", errors.New("connection refused"), http.StatusInternalServerError, EventScanError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newCatalog()
			catalog.err = tt.catalogErr
			pub := &recordingPublisher{}
			srv := NewServer(Config{}, catalog, NewHub("", quiet), quiet, pub)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}

			var resp messageResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("invalid JSON response: %v", err)
			}
			if resp.Message == "" {
				t.Error("expected a message in the response")
			}
			if tt.wantName != "" && (resp.Product == nil || resp.Product.Name != tt.wantName) {
				t.Errorf("product = %+v, want %s", resp.Product, tt.wantName)
			}

			if got := pub.types(); len(got) != 1 || got[0] != tt.wantEvent {
				t.Errorf("events = %v, want [%s]", got, tt.wantEvent)
			}
		})
	}
}

func TestHandleScanRequiresClient(t *testing.T) {
	pub := &recordingPublisher{}
	srv := NewServer(Config{RequireClient: true}, newCatalog(), NewHub("", quiet), quiet, pub)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/4006381333931", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if len(pub.types()) != 0 {
		t.Errorf("no event should be emitted, got %v", pub.types())
	}
}

func TestHealthAndCORS(t *testing.T) {
	srv := NewServer(Config{AllowedOrigin: "http://localhost:5173"}, newCatalog(), NewHub("", quiet), quiet)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/4006381333931", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/4006381333931", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on scan route = %d, want 405", rec.Code)
	}
}

func TestWebsocketReceivesEvents(t *testing.T) {
	hub := NewHub("", quiet)
	srv := httptest.NewServer(NewServer(Config{RequireClient: true}, newCatalog(), hub, quiet))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// Registration happens in the server goroutine after the handshake.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/api/4006381333931", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		ID   string        `json:"id"`
		Type string        `json:"type"`
		Data store.Product `json:"data"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != EventProductAdded || ev.Data.Name != "Milk 1L" {
		t.Errorf("event = %+v", ev)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("event id %q is not a UUID", ev.ID)
	}
}

func TestHubOriginCheck(t *testing.T) {
	hub := NewHub("http://localhost:5173", quiet)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Error("expected a foreign origin to be rejected")
	}

	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}
