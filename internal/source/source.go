// Package source fetches raw camera frames from an ESP32-CAM style device.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/utils"
)

const megabyte = 1024 * 1024

// maxFrameSize bounds a single still; the hi-res preset is well under this.
const maxFrameSize = 16 * megabyte

// Still fetches one JPEG per request from a snapshot endpoint (e.g. /cam-hi.jpg).
// With Gated set, HTTP 204 is the device's "nothing in front of the sensor" signal.
type Still struct {
	URL    string
	Gated  bool
	client *http.Client
}

// NewStill returns a still-image source with the given per-request timeout.
func NewStill(url string, gated bool, timeout time.Duration) *Still {
	return &Still{
		URL:    url,
		Gated:  gated,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch performs a single GET. It returns types.ErrNoFrame for the idle signal and
// wraps types.ErrUnexpectedStatus for any other non-200 response.
func (s *Still) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build frame request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch frame from %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNoContent && s.Gated:
		io.Copy(io.Discard, resp.Body)
		return nil, types.ErrNoFrame
	default:
		io.Copy(io.Discard, io.LimitReader(resp.Body, megabyte))
		return nil, fmt.Errorf("%w %d from %s", types.ErrUnexpectedStatus, resp.StatusCode, s.URL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	if err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return utils.TrimJpeg(data), nil
}

// Stream reads frames from a multipart MJPEG endpoint (e.g. :81/stream), keeping
// the connection open across calls and reconnecting on the next Fetch after a failure.
type Stream struct {
	URL     string
	Timeout time.Duration
	client  *http.Client

	cancel  context.CancelCauseFunc
	connCtx context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// NewStream returns a stream source. The timeout bounds connection setup and
// the wait for each frame; a device that stops sending is dropped and redialled.
func NewStream(url string, timeout time.Duration) *Stream {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &Stream{
		URL:     url,
		Timeout: timeout,
		client:  &http.Client{Transport: transport},
	}
}

func (s *Stream) Fetch(ctx context.Context) ([]byte, error) {
	if s.scanner == nil {
		if err := s.connect(ctx); err != nil {
			return nil, err
		}
	}

	cancel := s.cancel
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	if s.Timeout > 0 {
		timer := time.AfterFunc(s.Timeout, func() {
			cancel(fmt.Errorf("no frame within %s: %w", s.Timeout, context.DeadlineExceeded))
		})
		defer timer.Stop()
	}
	ok := s.scanner.Scan()
	stop()

	if ok {
		frame := make([]byte, len(s.scanner.Bytes()))
		copy(frame, s.scanner.Bytes())
		return frame, nil
	}

	err := s.scanner.Err()
	if cause := context.Cause(s.connCtx); cause != nil {
		err = cause
	}
	s.Close()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read stream from %s: %w", s.URL, err)
}

func (s *Stream) connect(ctx context.Context) error {
	// The connection outlives this call, so it is not bound to ctx.
	connCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	defer stop()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, s.URL, nil)
	if err != nil {
		cancel(nil)
		return fmt.Errorf("build stream request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		cancel(nil)
		return fmt.Errorf("open stream %s: %w", s.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel(nil)
		return fmt.Errorf("%w %d from %s", types.ErrUnexpectedStatus, resp.StatusCode, s.URL)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, megabyte), maxFrameSize)
	scanner.Split(utils.SplitJpeg)

	s.connCtx = connCtx
	s.cancel = cancel
	s.body = resp.Body
	s.scanner = scanner
	return nil
}

// Close drops the current connection, if any.
func (s *Stream) Close() error {
	s.scanner = nil
	if s.cancel != nil {
		s.cancel(nil)
		s.cancel = nil
	}
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}
