package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/pkg/llm"
	"ai-learnpath-be/pkg/vector"
)

const topicLabelPrompt = `You are a helpful assistant that determines the topic of a question.
Only give the topic, no other text.

Question: %s`

// AnswerChunk is the unit yielded to the outer boundary: one generation
// event plus the identifiers the transport layer needs.
type AnswerChunk struct {
	SessionID uuid.UUID
	MessageID uuid.UUID
	Event     Event
}

// AssistantConfig tunes one session orchestrator.
type AssistantConfig struct {
	// LabelModel is the lightweight model used for topic labeling.
	// Empty means the provider default.
	LabelModel string

	// Labeled marks a session whose topic label already exists, so the
	// first-exchange labeling call is skipped.
	Labeled bool
}

// Assistant ties one Memory and one Generator to one persisted session.
// It enforces at-most-one generation in flight, persists each completed
// exchange, derives the topic label on the first exchange, and feeds the
// interaction back into memory for later retrieval.
type Assistant struct {
	sessionID uuid.UUID
	memory    *vector.Memory
	generator *Generator
	history   History
	provider  llm.Provider
	log       logger.ILogger

	mu      sync.Mutex // held for the whole lifetime of one Answer call
	tokenMu sync.Mutex
	token   *CancelToken

	labelModel string
	labeled    bool
}

func NewAssistant(
	sessionID uuid.UUID,
	memory *vector.Memory,
	generator *Generator,
	history History,
	provider llm.Provider,
	log logger.ILogger,
	cfg AssistantConfig,
) *Assistant {
	return &Assistant{
		sessionID:  sessionID,
		memory:     memory,
		generator:  generator,
		history:    history,
		provider:   provider,
		log:        log,
		labelModel: cfg.LabelModel,
		labeled:    cfg.Labeled,
	}
}

func (a *Assistant) SessionID() uuid.UUID {
	return a.sessionID
}

// Memory exposes the session memory for seeding (e.g., lesson content).
func (a *Assistant) Memory() *vector.Memory {
	return a.memory
}

// Answer starts a fresh generation for the question and returns its chunk
// stream. A second call while one generation is in flight is rejected with
// ErrGenerationInFlight. Once any output reached the caller the post-stream
// side effects run regardless of how the stream ended, in order: persist the
// exchange, derive the topic label on the session's first exchange, feed the
// interaction back into memory.
func (a *Assistant) Answer(ctx context.Context, opts GenerateOptions) (<-chan AnswerChunk, error) {
	if !a.mu.TryLock() {
		return nil, ErrGenerationInFlight
	}

	token := NewCancelToken()
	a.tokenMu.Lock()
	a.token = token
	a.tokenMu.Unlock()

	messageID := uuid.New()
	events := a.generator.Generate(ctx, opts, token)
	out := make(chan AnswerChunk, 1)

	go func() {
		defer a.mu.Unlock()
		defer close(out)

		var answer strings.Builder
		failed := false
		var terminal *Event

		for ev := range events {
			switch ev.Kind {
			case EventChunk:
				answer.WriteString(ev.Text)
				a.forward(ctx, out, messageID, ev)
			case EventDone, EventError:
				// Held back until the side effects ran, so a persist
				// failure can still be surfaced as the terminal event.
				failed = ev.Kind == EventError
				held := ev
				terminal = &held
			}
		}

		if answer.Len() == 0 {
			// Nothing reached the caller, so there is nothing to persist.
			if terminal != nil {
				a.forward(ctx, out, messageID, *terminal)
			}
			return
		}

		// The caller may have disconnected mid-stream; persistence still
		// has to run to completion. Text the caller already received is
		// kept even when the stream ended in failure.
		cleanupCtx := context.WithoutCancel(ctx)
		if err := a.finalize(cleanupCtx, opts.Question, answer.String()); err != nil {
			a.log.Error("chat", "post-generation side effects failed", map[string]interface{}{
				"session_id": a.sessionID.String(),
				"error":      err.Error(),
			})
			if !failed {
				a.forward(ctx, out, messageID, Event{Kind: EventError, State: StateFailed, Err: err})
				return
			}
			// The model failure stays the terminal event; the persist
			// failure is logged only.
		}
		if terminal != nil {
			a.forward(ctx, out, messageID, *terminal)
		}
	}()

	return out, nil
}

// Stop requests cooperative cancellation of the in-flight generation.
// A no-op when nothing is generating.
func (a *Assistant) Stop() {
	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()
	if a.token != nil {
		a.token.Cancel()
	}
}

// State reports the current generator state.
func (a *Assistant) State() State {
	return a.generator.State()
}

// Clear re-seeds the session memory, discarding all indexed history.
func (a *Assistant) Clear(ctx context.Context, seeds ...string) error {
	return a.memory.Clear(ctx, seeds...)
}

func (a *Assistant) forward(ctx context.Context, out chan<- AnswerChunk, messageID uuid.UUID, ev Event) {
	select {
	case out <- AnswerChunk{SessionID: a.sessionID, MessageID: messageID, Event: ev}:
	case <-ctx.Done():
	}
}

// finalize runs the guaranteed post-stream chain. Persistence of the
// interaction happens-before it becomes visible to retrieval: the memory
// write is sequenced strictly after the durable append.
func (a *Assistant) finalize(ctx context.Context, question, answer string) error {
	if err := a.history.AppendInteraction(ctx, a.sessionID, question, answer); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	// Label derivation is covered by the session lock, so concurrent first
	// turns cannot trigger duplicate label calls.
	if !a.labeled {
		a.deriveTopic(ctx, question)
	}

	if err := a.memory.AddInteraction(ctx, question, answer); err != nil {
		a.log.Warn("chat", "interaction persisted but not indexed", map[string]interface{}{
			"session_id": a.sessionID.String(),
			"error":      err.Error(),
		})
	}
	return nil
}

func (a *Assistant) deriveTopic(ctx context.Context, question string) {
	opts := []llm.Option{llm.WithTemperature(0.2)}
	if a.labelModel != "" {
		opts = append(opts, llm.WithModel(a.labelModel))
	}

	label, err := a.provider.Generate(ctx, fmt.Sprintf(topicLabelPrompt, question), opts...)
	if err != nil {
		// Label derivation is best-effort; the next first-exchange attempt
		// will retry because labeled stays false.
		a.log.Warn("chat", "topic label derivation failed", map[string]interface{}{
			"session_id": a.sessionID.String(),
			"error":      err.Error(),
		})
		return
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	if err := a.history.SetTopic(ctx, a.sessionID, label); err != nil {
		a.log.Warn("chat", "topic label not persisted", map[string]interface{}{
			"session_id": a.sessionID.String(),
			"error":      err.Error(),
		})
		return
	}
	a.labeled = true
}
