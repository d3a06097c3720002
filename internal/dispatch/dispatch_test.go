package dispatch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// backend records requests and answers with a fixed status.
type backend struct {
	status      int
	posts       atomic.Int32
	beeps       atomic.Int32
	lastPath    atomic.Value
	contentType atomic.Value
}

func (b *backend) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("expected empty body, got %q", body)
		}
		b.posts.Add(1)
		b.lastPath.Store(r.URL.EscapedPath())
		b.contentType.Store(r.Header.Get("Content-Type"))
		w.WriteHeader(b.status)
		w.Write([]byte(`{"message":"ok"}`))
	})
	mux.HandleFunc("/beep", func(w http.ResponseWriter, r *http.Request) {
		b.beeps.Add(1)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatchOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  types.OutcomeKind
		wantBeeps int32
	}{
		{"OK", http.StatusOK, types.Sent, 1},
		{"Created", http.StatusCreated, types.Sent, 1},
		{"Not found", http.StatusNotFound, types.RejectedFinal, 0},
		{"Server error", http.StatusInternalServerError, types.RejectedRetryable, 0},
		{"Service unavailable", http.StatusServiceUnavailable, types.RejectedRetryable, 0},
		{"Bad request", http.StatusBadRequest, types.RejectedRetryable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &backend{status: tt.status}
			srv := b.server(t)

			d := New(Config{BaseURL: srv.URL + "/api/", AlertURL: srv.URL + "/beep", Timeout: time.Second}, quiet)
			out := d.Dispatch(context.Background(), "12345")

			if out.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", out.Kind, tt.wantKind)
			}
			if out.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", out.StatusCode, tt.status)
			}
			if got := b.lastPath.Load(); got != "/api/12345" {
				t.Errorf("path = %v, want /api/12345", got)
			}
			if got := b.contentType.Load(); got != "application/json" {
				t.Errorf("Content-Type = %v, want application/json", got)
			}
			if got := b.beeps.Load(); got != tt.wantBeeps {
				t.Errorf("beeps = %d, want %d", got, tt.wantBeeps)
			}
		})
	}
}

func TestDispatchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api/"
	srv.Close()

	out := New(Config{BaseURL: base, Timeout: time.Second}, quiet).Dispatch(context.Background(), "12345")
	if out.Kind != types.NetworkFailure || out.Err == nil {
		t.Errorf("outcome = %+v, want NetworkFailure with error", out)
	}
}

func TestDispatchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	out := New(Config{BaseURL: srv.URL + "/api/", Timeout: 50 * time.Millisecond}, quiet).Dispatch(context.Background(), "12345")
	if out.Kind != types.NetworkFailure {
		t.Errorf("Kind = %v, want NetworkFailure", out.Kind)
	}
}

func TestAlertFailureDoesNotAffectOutcome(t *testing.T) {
	b := &backend{status: http.StatusOK}
	srv := b.server(t)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/beep"
	dead.Close()

	out := New(Config{BaseURL: srv.URL + "/api/", AlertURL: deadURL, Timeout: time.Second}, quiet).Dispatch(context.Background(), "12345")
	if out.Kind != types.Sent {
		t.Errorf("Kind = %v, want Sent despite unreachable buzzer", out.Kind)
	}
}

func TestTarget(t *testing.T) {
	tests := []struct {
		name    string
		escape  bool
		payload string
		want    string
	}{
		{"Raw", false, "4006381333931", "http://localhost:5001/api/4006381333931"},
		{"Raw keeps reserved characters", false, "a b/c", "http://localhost:5001/api/a b/c"},
		{"Escaped", true, "a b/c", "http://localhost:5001/api/a%20b%2Fc"},
		{"Raw invalid escape falls back", false, "50%off", "http://localhost:5001/api/50%25off"},
		{"Raw valid escape kept", false, "50%25", "http://localhost:5001/api/50%25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(Config{BaseURL: "http://localhost:5001/api/", EscapePayload: tt.escape}, quiet)
			if got := d.Target(tt.payload); got != tt.want {
				t.Errorf("Target(%q) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

func TestEscapedPayloadReachesBackend(t *testing.T) {
	b := &backend{status: http.StatusOK}
	srv := b.server(t)

	d := New(Config{BaseURL: srv.URL + "/api/", Timeout: time.Second, EscapePayload: true}, quiet)
	if out := d.Dispatch(context.Background(), "https://shop.example/p?id=7"); out.Kind != types.Sent {
		t.Fatalf("Kind = %v, want Sent", out.Kind)
	}
	if got := b.lastPath.Load(); got != "/api/https:%2F%2Fshop.example%2Fp%3Fid=7" {
		t.Errorf("escaped path = %v", got)
	}
}

func TestUnparsablePayloadIsSent(t *testing.T) {
	b := &backend{status: http.StatusOK}
	srv := b.server(t)

	d := New(Config{BaseURL: srv.URL + "/api/", Timeout: time.Second}, quiet)
	out := d.Dispatch(context.Background(), "50%off")
	if out.Kind != types.Sent {
		t.Fatalf("Kind = %v (err %v), want Sent", out.Kind, out.Err)
	}
	if b.posts.Load() != 1 {
		t.Errorf("posts = %d, want 1", b.posts.Load())
	}
	if got := b.lastPath.Load(); got != "/api/50%25off" {
		t.Errorf("path = %v", got)
	}
}
