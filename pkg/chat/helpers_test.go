package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ai-learnpath-be/pkg/embedding"
	"ai-learnpath-be/pkg/llm"
	"ai-learnpath-be/pkg/vector"
)

// stubEmbedder returns a deterministic direction per text so memory
// retrieval works without a real embedding service.
type stubEmbedder struct{}

func (stubEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.Response, error) {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return &embedding.Response{
		Embedding: embedding.ResponseEmbedding{Values: embedding.NormalizeVector([]float32{sum, 1})},
	}, nil
}

// failingEmbedder simulates an embedding collaborator outage.
type failingEmbedder struct{}

func (failingEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.Response, error) {
	return nil, fmt.Errorf("embedding service down")
}

// fakeProvider scripts a streamed response. fragments are delivered one at
// a time through onDelta; afterFragment (if set) runs after each successful
// delivery, which lets tests cancel a token mid-stream. failAfter >= 0
// injects a provider error once that many fragments were delivered.
type fakeProvider struct {
	mu            sync.Mutex
	fragments     []string
	failAfter     int
	afterFragment func(index int)

	generateReply string
	generateErr   error

	streamPrompts   [][]llm.Message
	generatePrompts []string
	started         chan struct{} // closed when the first Stream call begins
	release         chan struct{} // when non-nil, Stream blocks on it before streaming
}

func newFakeProvider(fragments ...string) *fakeProvider {
	return &fakeProvider{
		fragments:     fragments,
		failAfter:     -1,
		generateReply: "Generated Topic",
		started:       make(chan struct{}),
	}
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	var full string
	for _, fr := range f.fragments {
		full += fr
	}
	return full, nil
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	f.mu.Lock()
	f.generatePrompts = append(f.generatePrompts, prompt)
	f.mu.Unlock()
	return f.generateReply, f.generateErr
}

func (f *fakeProvider) Stream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, opts ...llm.Option) error {
	f.mu.Lock()
	f.streamPrompts = append(f.streamPrompts, history)
	first := len(f.streamPrompts) == 1
	f.mu.Unlock()

	if first {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}

	for i, fr := range f.fragments {
		if f.failAfter >= 0 && i == f.failAfter {
			return fmt.Errorf("model connection reset")
		}
		if err := onDelta(fr); err != nil {
			return err
		}
		if f.afterFragment != nil {
			f.afterFragment(i)
		}
	}
	return nil
}

func (f *fakeProvider) lastStreamPrompt() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streamPrompts) == 0 {
		return nil
	}
	return f.streamPrompts[len(f.streamPrompts)-1]
}

// fakeHistory is an in-memory persistence collaborator.
type fakeHistory struct {
	mu           sync.Mutex
	interactions map[uuid.UUID][]Interaction
	topics       map[uuid.UUID]string
	appendErr    error
	onAppend     func()
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		interactions: map[uuid.UUID][]Interaction{},
		topics:       map[uuid.UUID]string{},
	}
}

func (h *fakeHistory) AppendInteraction(ctx context.Context, sessionID uuid.UUID, question, answer string) error {
	if h.onAppend != nil {
		h.onAppend()
	}
	if h.appendErr != nil {
		return h.appendErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interactions[sessionID] = append(h.interactions[sessionID], Interaction{
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now(),
	})
	return nil
}

func (h *fakeHistory) LoadInteractions(ctx context.Context, sessionID uuid.UUID) ([]Interaction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Interaction(nil), h.interactions[sessionID]...), nil
}

func (h *fakeHistory) SetTopic(ctx context.Context, sessionID uuid.UUID, topic string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics[sessionID] = topic
	return nil
}

func (h *fakeHistory) count(sessionID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.interactions[sessionID])
}

func (h *fakeHistory) topic(sessionID uuid.UUID) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.topics[sessionID]
}

func newTestMemory(t *testing.T, emb embedding.Provider) *vector.Memory {
	t.Helper()
	m, err := vector.NewMemory(context.Background(), vector.NewIndex(emb), vector.MemoryConfig{})
	require.NoError(t, err)
	return m
}

// splitChars turns a string into one-character fragments, the worst case
// for the buffering policy.
func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func drain(t *testing.T, ch <-chan AnswerChunk) (chunks []Event, terminal Event) {
	t.Helper()
	var sawTerminal bool
	for c := range ch {
		switch c.Event.Kind {
		case EventChunk:
			chunks = append(chunks, c.Event)
		default:
			require.False(t, sawTerminal, "stream must carry exactly one terminal event")
			sawTerminal = true
			terminal = c.Event
		}
	}
	require.True(t, sawTerminal, "stream must terminate with Done or Error")
	return chunks, terminal
}
