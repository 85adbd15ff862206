package entity

import (
	"time"

	"github.com/google/uuid"
)

// Roadmap is a generated learning path. Plan holds the raw JSON tree the
// model produced (categories with nested topics).
type Roadmap struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Topic     string
	Plan      []byte
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
