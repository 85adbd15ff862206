package chat

import (
	"sync/atomic"
	"time"
)

// State tracks one generation's lifecycle:
// Idle -> Generating -> (Completed | Cancelled | Failed).
type State int32

const (
	StateIdle State = iota
	StateGenerating
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// CancelToken requests cooperative cancellation of one generation call.
// The generator checks it once per incoming fragment; the fragment in hand
// at the observing check is not appended, and the partial buffer is flushed
// as a final chunk. A token belongs to a single Generate call.
type CancelToken struct {
	cancelled atomic.Bool
}

func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}

// Metadata accompanies every emitted chunk.
type Metadata struct {
	Timestamp      time.Time `json:"timestamp"`
	Model          string    `json:"model"`
	LatencySeconds float64   `json:"latency_seconds"`
	ResponseChars  int       `json:"response_char_count"`
	PromptChars    int       `json:"prompt_char_count"` // plain length, not a token count
}

// EventKind tags each item of the generation stream so a consumer can never
// mistake a failure for a normal end-of-stream.
type EventKind int

const (
	EventChunk EventKind = iota
	EventDone
	EventError
)

// Event is one tagged outcome produced during generation.
//   - EventChunk: Text holds a buffered fragment of the answer.
//   - EventDone:  terminal; State is Completed or Cancelled.
//   - EventError: terminal; Err holds the failure.
type Event struct {
	Kind  EventKind
	Text  string
	Meta  Metadata
	State State
	Err   error
}
