package scanner

import (
	"time"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// DefaultDebounce is the minimum interval before the same payload is sent again.
const DefaultDebounce = 3 * time.Second

// DebounceState records the last payload the backend handled.
// The zero value is the empty state: nothing has been dispatched yet.
type DebounceState struct {
	LastPayload  string
	LastDispatch time.Time
	set          bool
}

// Empty reports whether no payload has been recorded.
func (s DebounceState) Empty() bool {
	return !s.set
}

// ShouldDispatch reports whether candidate may be sent at now.
// A different payload always passes; the same payload passes only once
// strictly more than window has elapsed since it was last handled.
func ShouldDispatch(candidate string, now time.Time, state DebounceState, window time.Duration) bool {
	if state.Empty() {
		return true
	}
	return candidate != state.LastPayload || now.Sub(state.LastDispatch) > window
}

// Gate owns the DebounceState for the lifetime of a scan loop.
type Gate struct {
	Window time.Duration
	state  DebounceState
}

// NewGate returns a gate with an empty state.
func NewGate(window time.Duration) *Gate {
	return &Gate{Window: window}
}

func (g *Gate) ShouldDispatch(candidate string, now time.Time) bool {
	return ShouldDispatch(candidate, now, g.state, g.Window)
}

// Record applies a dispatch outcome. Only Sent and RejectedFinal move the state;
// failed or retryable attempts leave it untouched so the next frame retries.
func (g *Gate) Record(candidate string, now time.Time, outcome types.DispatchOutcome) bool {
	if !outcome.Advances() {
		return false
	}
	g.state = DebounceState{LastPayload: candidate, LastDispatch: now, set: true}
	return true
}

func (g *Gate) State() DebounceState {
	return g.state
}
