package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Interaction is one persisted question/answer exchange.
type Interaction struct {
	Question  string
	Answer    string
	CreatedAt time.Time
}

// History is the persistence collaborator seen by the orchestrator.
// Each call is assumed durable and atomic; failures surface upward as
// wrapped ErrPersist / retrieval errors.
type History interface {
	// AppendInteraction durably stores one completed exchange.
	AppendInteraction(ctx context.Context, sessionID uuid.UUID, question, answer string) error

	// LoadInteractions returns every stored exchange for the session in
	// chronological order. Used to rebuild memory on a cold session.
	LoadInteractions(ctx context.Context, sessionID uuid.UUID) ([]Interaction, error)

	// SetTopic persists the session's auto-derived topic label.
	SetTopic(ctx context.Context, sessionID uuid.UUID, topic string) error
}
