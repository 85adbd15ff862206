package store

import "time"

// SessionState is the volatile per-session state kept in memory alongside
// the durable chat rows: cheap flags the handlers consult without a DB trip.
type SessionState struct {
	ID         string
	Topic      string
	Generating bool
	LastQuery  string
	UpdatedAt  time.Time
}
