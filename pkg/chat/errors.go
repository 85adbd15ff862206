package chat

import "errors"

var (
	// ErrGenerationInFlight is returned when Answer is called on a session
	// that already has a generation running. At most one generation per
	// session; the caller retries after the current one finishes.
	ErrGenerationInFlight = errors.New("chat: a generation is already in flight for this session")

	// ErrGenerationFailed wraps a model collaborator failure mid-stream.
	// No partial buffer is emitted on this path.
	ErrGenerationFailed = errors.New("chat: generation failed")

	// ErrPersist wraps a post-generation write failure. Surfaced to the
	// caller but does not invalidate text already streamed.
	ErrPersist = errors.New("chat: failed to persist interaction")
)
