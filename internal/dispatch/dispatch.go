// Package dispatch forwards decoded payloads to the product backend.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// DefaultTimeout bounds a single backend POST. The alert call gets half of it.
const DefaultTimeout = 5 * time.Second

// maxBodyLog caps how much of a backend response body is kept for logging.
const maxBodyLog = 4096

// Config describes where payloads go.
type Config struct {
	// BaseURL is prefixed verbatim to the payload, e.g. "http://localhost:5001/api/".
	BaseURL string
	// AlertURL, when set, is hit with a GET after every successful dispatch.
	AlertURL string
	Timeout  time.Duration
	// EscapePayload path-escapes the payload before embedding it.
	EscapePayload bool
}

// HTTP posts payloads to the backend and classifies the response.
type HTTP struct {
	cfg    Config
	client *http.Client
	alert  *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		alert:  &http.Client{Timeout: cfg.Timeout / 2},
		logger: logger,
	}
}

// Target builds the backend URL for payload. A raw payload that would not
// parse as a URL (a stray '%', a control byte) is path-escaped instead.
func (d *HTTP) Target(payload string) string {
	if d.cfg.EscapePayload {
		return d.cfg.BaseURL + url.PathEscape(payload)
	}
	target := d.cfg.BaseURL + payload
	if _, err := url.Parse(target); err != nil {
		return d.cfg.BaseURL + url.PathEscape(payload)
	}
	return target
}

// Dispatch issues the POST. 2xx is Sent, 404 is RejectedFinal (unknown barcode),
// any other status is RejectedRetryable and transport errors are NetworkFailure.
func (d *HTTP) Dispatch(ctx context.Context, payload string) types.DispatchOutcome {
	target := d.Target(payload)
	d.logger.Info("sending POST request for barcode", "payload", payload, "target", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		// Nothing reached the backend, so the debounce state must not move.
		d.logger.Error("failed to build backend request", "payload", payload, "error", err)
		return types.DispatchOutcome{Kind: types.NetworkFailure, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("network error sending POST", "target", target, "error", err)
		return types.DispatchOutcome{Kind: types.NetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))
	outcome := Classify(resp.StatusCode, strings.TrimSpace(string(body)))

	switch outcome.Kind {
	case types.Sent:
		d.logger.Info("backend accepted payload", "status", resp.StatusCode, "body", outcome.Body)
		d.triggerAlert(ctx)
	case types.RejectedFinal:
		d.logger.Warn("backend indicated product not found", "payload", payload, "status", resp.StatusCode)
	default:
		d.logger.Error("backend returned error status", "payload", payload, "status", resp.StatusCode, "body", outcome.Body)
	}
	return outcome
}

// Classify maps an HTTP status to a dispatch outcome.
func Classify(status int, body string) types.DispatchOutcome {
	switch {
	case status >= 200 && status < 300:
		return types.DispatchOutcome{Kind: types.Sent, StatusCode: status, Body: body}
	case status == http.StatusNotFound:
		return types.DispatchOutcome{Kind: types.RejectedFinal, StatusCode: status, Body: body}
	default:
		return types.DispatchOutcome{
			Kind:       types.RejectedRetryable,
			StatusCode: status,
			Body:       body,
			Err:        fmt.Errorf("backend status %d", status),
		}
	}
}

// triggerAlert is best effort: failures are logged and never change the outcome.
func (d *HTTP) triggerAlert(ctx context.Context) {
	if d.cfg.AlertURL == "" {
		return
	}
	d.logger.Info("triggering buzzer", "url", d.cfg.AlertURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.AlertURL, nil)
	if err != nil {
		d.logger.Warn("failed to trigger buzzer", "error", err)
		return
	}
	resp, err := d.alert.Do(req)
	if err != nil {
		d.logger.Warn("failed to trigger buzzer", "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyLog))

	if resp.StatusCode >= 400 {
		d.logger.Warn("buzzer returned error status", "status", resp.StatusCode)
		return
	}
	d.logger.Info("buzzer response", "status", resp.StatusCode)
}
