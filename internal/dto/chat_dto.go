package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Topic string `json:"topic"`
	// LessonContentId seeds the session memory with a lesson body so the
	// user can chat about that lesson.
	LessonContentId *uuid.UUID `json:"lesson_content_id,omitempty"`
}

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Topic     string     `json:"topic"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Chat      string    `json:"chat"`
	CreatedAt time.Time `json:"created_at"`
}

type AskRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
	Question      string    `json:"question" validate:"required"`
	Model         string    `json:"model,omitempty"`
}

type ChunkMetadata struct {
	Timestamp         time.Time `json:"timestamp"`
	Model             string    `json:"model"`
	LatencySeconds    float64   `json:"latency_seconds"`
	ResponseCharCount int       `json:"response_char_count"`
	PromptCharCount   int       `json:"prompt_char_count"`
}

// StreamChunkResponse is one websocket frame of a streamed answer.
// Type is "chunk", "done" or "error".
type StreamChunkResponse struct {
	ChatSessionId uuid.UUID     `json:"chat_session_id"`
	MessageId     uuid.UUID     `json:"message_id"`
	Type          string        `json:"type"`
	Message       string        `json:"message,omitempty"`
	Metadata      ChunkMetadata `json:"metadata"`
	Error         string        `json:"error,omitempty"`
}

type DeleteSessionRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
}

// SearchInteractionsResponse is one semantically similar chunk of a past
// exchange, retrieved from the durable embedding store.
type SearchInteractionsResponse struct {
	Id         uuid.UUID `json:"id"`
	Document   string    `json:"document"`
	Similarity float64   `json:"similarity"`
	ChunkIndex int       `json:"chunk_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// PublishEmbedInteractionMessage is the payload published to the embedding
// pipeline after an exchange is persisted.
type PublishEmbedInteractionMessage struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
}
