package vector

import "errors"

var (
	// ErrInvalidInput marks empty or malformed input to the index or the
	// memory adapter. Local, never retried, surfaced to the caller as-is.
	ErrInvalidInput = errors.New("vector: text must be a non-empty string")

	// ErrRetrieval wraps embedding or search collaborator failures. Callers
	// need to know the retrieved context is not trustworthy, so this is
	// never swallowed.
	ErrRetrieval = errors.New("vector: retrieval failed")
)
