package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ThreadContent struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ThreadId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	Concept      string         `gorm:"type:text;not null"`
	Body         string         `gorm:"type:text;not null"`
	ContentIndex int            `gorm:"not null;default:0"` // 0-based, drives depth progression
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (ThreadContent) TableName() string {
	return "thread_contents"
}
