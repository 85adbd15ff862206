package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeSessionCreated         = "SESSION_CREATED"
	TypeSessionDeleted         = "SESSION_DELETED"
	TypeAnswerCompleted        = "ANSWER_COMPLETED"
	TypeThreadContentGenerated = "THREAD_CONTENT_GENERATED"
)

func NewSessionCreated(sessionID, userID uuid.UUID, topic string) Event {
	return BaseEvent{
		Type: TypeSessionCreated,
		Data: map[string]interface{}{
			"session_id": sessionID.String(),
			"user_id":    userID.String(),
			"topic":      topic,
		},
		OccurredAt: time.Now(),
	}
}

func NewSessionDeleted(sessionID, userID uuid.UUID) Event {
	return BaseEvent{
		Type: TypeSessionDeleted,
		Data: map[string]interface{}{
			"session_id": sessionID.String(),
			"user_id":    userID.String(),
		},
		OccurredAt: time.Now(),
	}
}

func NewAnswerCompleted(sessionID, messageID uuid.UUID, responseChars int) Event {
	return BaseEvent{
		Type: TypeAnswerCompleted,
		Data: map[string]interface{}{
			"session_id":          sessionID.String(),
			"message_id":          messageID.String(),
			"response_char_count": responseChars,
		},
		OccurredAt: time.Now(),
	}
}

func NewThreadContentGenerated(threadID uuid.UUID, concept string, contentIndex int) Event {
	return BaseEvent{
		Type: TypeThreadContentGenerated,
		Data: map[string]interface{}{
			"thread_id":     threadID.String(),
			"concept":       concept,
			"content_index": contentIndex,
		},
		OccurredAt: time.Now(),
	}
}
