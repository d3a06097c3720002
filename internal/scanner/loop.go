package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// Image is a decoded pixel buffer. The loop closes it once the cycle ends.
type Image interface {
	Close() error
}

// Source fetches one raw frame. It returns types.ErrNoFrame for the idle signal.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Decoder turns raw bytes into a pixel buffer.
type Decoder interface {
	Decode(data []byte) (Image, error)
}

// Detector finds optical codes in a decoded frame, in scan order.
type Detector interface {
	Detect(img Image) ([]types.DetectedCode, error)
}

// Dispatcher forwards a payload to the backend and classifies the response.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload string) types.DispatchOutcome
}

// Renderer displays frames. It never feeds back into dispatch decisions,
// except that ExitRequested lets a window report an exit keypress.
type Renderer interface {
	Frame(img Image, codes []types.DetectedCode, sel *Selection) error
	Placeholder(message string) error
	ExitRequested() bool
	Close() error
}

// IdleMessage is rendered while the device reports nothing in front of the sensor.
const IdleMessage = "Waiting for object..."

// Config holds the fixed delays applied after each failure class.
type Config struct {
	Debounce       time.Duration
	IdlePoll       time.Duration
	FetchBackoff   time.Duration
	TimeoutBackoff time.Duration
	StatusBackoff  time.Duration
	DecodeBackoff  time.Duration
}

// DefaultConfig mirrors the device firmware's expectations.
func DefaultConfig() Config {
	return Config{
		Debounce:       DefaultDebounce,
		IdlePoll:       100 * time.Millisecond,
		FetchBackoff:   2 * time.Second,
		TimeoutBackoff: time.Second,
		StatusBackoff:  time.Second,
		DecodeBackoff:  500 * time.Millisecond,
	}
}

// State is a node of the loop's state machine.
type State int

const (
	Fetching State = iota
	Decoding
	Detecting
	Selecting
	Gating
	Dispatching
	Rendering
	Stopped
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "FETCHING"
	case Decoding:
		return "DECODING"
	case Detecting:
		return "DETECTING"
	case Selecting:
		return "SELECTING"
	case Gating:
		return "GATING"
	case Dispatching:
		return "DISPATCHING"
	case Rendering:
		return "RENDERING"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type event int

const (
	evFrame event = iota
	evIdle
	evFetchFailed
	evDecoded
	evDecodeFailed
	evDetected
	evSelected
	evNothingSelected
	evAdmitted
	evSuppressed
	evDispatched
	evRendered
	evExit
	evCancel
)

type step struct {
	from State
	on   event
}

// transitions is the complete failure policy of the loop. Cancellation is
// accepted from every state and handled in advance.
var transitions = map[step]State{
	{Fetching, evFrame}:            Decoding,
	{Fetching, evIdle}:             Fetching,
	{Fetching, evFetchFailed}:      Fetching,
	{Decoding, evDecoded}:          Detecting,
	{Decoding, evDecodeFailed}:     Fetching,
	{Detecting, evDetected}:        Selecting,
	{Selecting, evSelected}:        Gating,
	{Selecting, evNothingSelected}: Rendering,
	{Gating, evAdmitted}:           Dispatching,
	{Gating, evSuppressed}:         Rendering,
	{Dispatching, evDispatched}:    Rendering,
	{Rendering, evRendered}:        Fetching,
	{Rendering, evExit}:            Stopped,
}

// Stats counts what the loop has done since start.
type Stats struct {
	Cycles         int
	Frames         int
	Idle           int
	FetchErrors    int
	DecodeErrors   int
	Detections     int
	Dispatched     int
	Suppressed     int
	Sent           int
	RejectedFinal  int
	Retryable      int
	NetworkFailure int
	LastPayload    string
	LastOutcome    string
}

// Loop is the single-threaded fetch → detect → dispatch controller.
type Loop struct {
	cfg        Config
	source     Source
	decoder    Decoder
	detector   Detector
	dispatcher Dispatcher
	renderer   Renderer
	logger     *slog.Logger

	gate  *Gate
	state State
	stats Stats

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires a loop. The debounce state starts empty on every process start.
func New(cfg Config, src Source, dec Decoder, det Detector, disp Dispatcher, r Renderer, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:        cfg,
		source:     src,
		decoder:    dec,
		detector:   det,
		dispatcher: disp,
		renderer:   r,
		logger:     logger,
		gate:       NewGate(cfg.Debounce),
		state:      Fetching,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func (l *Loop) State() State { return l.state }

func (l *Loop) Stats() Stats { return l.stats }

// Debounce returns a copy of the current debounce state.
func (l *Loop) Debounce() DebounceState { return l.gate.State() }

// Run cycles until ctx is cancelled or the renderer reports an exit request.
// It never returns an error for recoverable failures; those are logged and retried.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.renderer.Close(); err != nil {
			l.logger.Warn("failed to release display", "error", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			l.advance(evCancel)
			l.logger.Info("scan loop cancelled")
			return nil
		}
		if l.Cycle(ctx) {
			return nil
		}
	}
}

// Cycle runs one pass of the state machine starting at FETCHING.
// It returns true once the loop has reached STOPPED.
func (l *Loop) Cycle(ctx context.Context) bool {
	l.state = Fetching
	l.stats.Cycles++

	data, err := l.source.Fetch(ctx)
	switch {
	case errors.Is(err, types.ErrNoFrame):
		l.advance(evIdle)
		l.stats.Idle++
		if rerr := l.renderer.Placeholder(IdleMessage); rerr != nil {
			l.logger.Warn("failed to render placeholder", "error", rerr)
		}
		if l.renderer.ExitRequested() {
			l.state = Stopped
			l.logger.Info("exit requested from display")
			return true
		}
		return l.pause(ctx, l.cfg.IdlePoll)
	case err != nil:
		l.advance(evFetchFailed)
		l.stats.FetchErrors++
		delay := l.fetchDelay(err)
		l.logger.Error("frame fetch failed", "error", err, "retry_in", delay)
		return l.pause(ctx, delay)
	}
	l.advance(evFrame)
	l.stats.Frames++

	img, err := l.decoder.Decode(data)
	if err != nil {
		l.advance(evDecodeFailed)
		l.stats.DecodeErrors++
		l.logger.Error("failed to decode image frame", "error", err, "bytes", len(data))
		return l.pause(ctx, l.cfg.DecodeBackoff)
	}
	defer img.Close()
	l.advance(evDecoded)

	codes, err := l.detector.Detect(img)
	if err != nil {
		l.logger.Warn("code detection failed, treating frame as empty", "error", err)
		codes = nil
	}
	l.advance(evDetected)
	l.logSkipped(codes)

	var selected *Selection
	if sel, ok := Select(codes); ok {
		l.advance(evSelected)
		l.stats.Detections++
		selected = &sel
		l.logger.Info("code detected", "type", sel.Code.Symbology, "payload", sel.Payload)
		l.gateAndDispatch(ctx, sel.Payload)
	} else {
		l.advance(evNothingSelected)
	}

	if err := l.renderer.Frame(img, codes, selected); err != nil {
		l.logger.Warn("failed to render frame", "error", err)
	}
	if l.renderer.ExitRequested() {
		l.advance(evExit)
		l.logger.Info("exit requested from display")
		return true
	}
	l.advance(evRendered)
	return false
}

func (l *Loop) gateAndDispatch(ctx context.Context, payload string) {
	now := l.now()
	if !l.gate.ShouldDispatch(payload, now) {
		l.advance(evSuppressed)
		l.stats.Suppressed++
		l.logger.Debug("payload debounced", "payload", payload)
		return
	}
	l.advance(evAdmitted)
	l.stats.Dispatched++

	outcome := l.dispatcher.Dispatch(ctx, payload)
	switch outcome.Kind {
	case types.Sent:
		l.stats.Sent++
	case types.RejectedFinal:
		l.stats.RejectedFinal++
	case types.RejectedRetryable:
		l.stats.Retryable++
	case types.NetworkFailure:
		l.stats.NetworkFailure++
	}
	l.stats.LastPayload = payload
	l.stats.LastOutcome = outcome.Kind.String()

	if l.gate.Record(payload, now, outcome) {
		l.logger.Debug("debounce state advanced", "payload", payload, "outcome", outcome.Kind)
	}
	l.advance(evDispatched)
}

func (l *Loop) logSkipped(codes []types.DetectedCode) {
	for _, c := range codes {
		if !c.Decodable {
			l.logger.Warn("could not decode code data as UTF-8", "type", c.Symbology, "raw", fmt.Sprintf("%q", c.Raw))
			continue
		}
		if c.Text() == "" {
			l.logger.Info("detected empty code data, ignoring", "type", c.Symbology)
			continue
		}
		break
	}
}

// fetchDelay picks the fixed backoff for a fetch error class.
func (l *Loop) fetchDelay(err error) time.Duration {
	var ne net.Error
	switch {
	case errors.Is(err, types.ErrUnexpectedStatus):
		return l.cfg.StatusBackoff
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return l.cfg.TimeoutBackoff
	default:
		return l.cfg.FetchBackoff
	}
}

// pause sleeps for d and reports whether the loop was cancelled meanwhile.
func (l *Loop) pause(ctx context.Context, d time.Duration) bool {
	if err := l.sleep(ctx, d); err != nil {
		l.advance(evCancel)
		return true
	}
	return false
}

func (l *Loop) advance(ev event) {
	if ev == evCancel {
		l.state = Stopped
		return
	}
	next, ok := transitions[step{l.state, ev}]
	if !ok {
		panic(fmt.Sprintf("scanner: no transition from %s on event %d", l.state, ev))
	}
	l.state = next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
