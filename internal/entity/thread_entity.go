package entity

import (
	"time"

	"github.com/google/uuid"
)

type Thread struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Topic     string
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

// ThreadContent is one generated lesson in a thread. ContentIndex orders the
// lessons and drives the depth-level progression.
type ThreadContent struct {
	Id           uuid.UUID
	ThreadId     uuid.UUID
	Concept      string
	Body         string
	ContentIndex int
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
	IsDeleted    bool
}
