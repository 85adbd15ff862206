package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SuggestTopicsRequest struct {
	Topic    string   `json:"topic" validate:"required"`
	Explored []string `json:"explored,omitempty"`
}

type SuggestTopicsResponse struct {
	Topics []string `json:"topics"`
}

type CreateRoadmapRequest struct {
	Topic string `json:"topic" validate:"required"`
	Model string `json:"model,omitempty"`
}

type RoadmapResponse struct {
	Id        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Plan      json.RawMessage `json:"plan"`
	CreatedAt time.Time       `json:"created_at"`
}

type ListRoadmapsResponse struct {
	Roadmaps []RoadmapResponse `json:"roadmaps"`
	Total    int64             `json:"total"`
}

type CreateThreadRequest struct {
	Topic string `json:"topic" validate:"required"`
}

type ThreadResponse struct {
	Id        uuid.UUID `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
}

type ThreadContentResponse struct {
	Id           uuid.UUID `json:"id"`
	ThreadId     uuid.UUID `json:"thread_id"`
	Concept      string    `json:"concept"`
	Body         string    `json:"body"`
	ContentIndex int       `json:"content_index"`
	DepthLevel   string    `json:"depth_level"`
	CreatedAt    time.Time `json:"created_at"`
}

type GenerateThreadContentRequest struct {
	ThreadId uuid.UUID `json:"thread_id" validate:"required"`
	Model    string    `json:"model,omitempty"`
}

type GenerateThreadContentResponse struct {
	Contents []ThreadContentResponse `json:"contents"`
}
