package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-learnpath-be/internal/pkg/logger"
	"ai-learnpath-be/pkg/vector"
)

func newTestAssistant(t *testing.T, provider *fakeProvider, history *fakeHistory, cfg AssistantConfig) *Assistant {
	t.Helper()
	memory := newTestMemory(t, stubEmbedder{})
	gen := NewGenerator(provider, memory, GeneratorConfig{BufferSize: 10})
	return NewAssistant(uuid.New(), memory, gen, history, provider, logger.Nop(), cfg)
}

func TestAssistantFirstExchange(t *testing.T) {
	answer := "A hash table stores key-value pairs in buckets selected by a hash function."
	provider := newFakeProvider(splitChars(answer)...)
	provider.generateReply = "Hash Tables"
	history := newFakeHistory()
	assistant := newTestAssistant(t, provider, history, AssistantConfig{LabelModel: "small-model"})

	ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: "What is a hash table?"})
	require.NoError(t, err)

	chunks, terminal := drain(t, ch)
	require.NotEmpty(t, chunks, "a successful answer streams at least one chunk")
	assert.Equal(t, EventDone, terminal.Kind)
	assert.Equal(t, StateCompleted, terminal.State)

	var got strings.Builder
	for _, c := range chunks {
		got.WriteString(c.Text)
	}
	assert.Equal(t, answer, got.String())

	// One persisted interaction and an auto-derived topic label.
	assert.Equal(t, 1, history.count(assistant.SessionID()))
	assert.Equal(t, "Hash Tables", history.topic(assistant.SessionID()))
	require.Len(t, provider.generatePrompts, 1)
	assert.Contains(t, provider.generatePrompts[0], "What is a hash table?")
}

func TestAssistantFollowUpSeesEarlierInteraction(t *testing.T) {
	provider := newFakeProvider(splitChars("buckets chain colliding entries")...)
	history := newFakeHistory()
	assistant := newTestAssistant(t, provider, history, AssistantConfig{})

	ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: "What is a hash table?"})
	require.NoError(t, err)
	drain(t, ch)

	ch, err = assistant.Answer(context.Background(), GenerateOptions{Question: "How does it resolve collisions?"})
	require.NoError(t, err)
	drain(t, ch)

	prompt := provider.lastStreamPrompt()
	require.NotEmpty(t, prompt)
	assert.Contains(t, prompt[0].Content, "What is a hash table?",
		"the follow-up prompt context must include the earlier interaction")
}

func TestAssistantSecondExchangeSkipsLabeling(t *testing.T) {
	provider := newFakeProvider(splitChars("answer text")...)
	history := newFakeHistory()
	assistant := newTestAssistant(t, provider, history, AssistantConfig{})

	for _, q := range []string{"first question", "second question"} {
		ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: q})
		require.NoError(t, err)
		drain(t, ch)
	}

	assert.Len(t, provider.generatePrompts, 1, "topic labeling runs only on the first exchange")
	assert.Equal(t, 2, history.count(assistant.SessionID()))
}

func TestAssistantRejectsConcurrentAnswer(t *testing.T) {
	provider := newFakeProvider(splitChars(strings.Repeat("z", 50))...)
	provider.release = make(chan struct{})
	history := newFakeHistory()
	assistant := newTestAssistant(t, provider, history, AssistantConfig{Labeled: true})

	ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: "long question"})
	require.NoError(t, err)

	<-provider.started
	_, err = assistant.Answer(context.Background(), GenerateOptions{Question: "impatient second call"})
	assert.ErrorIs(t, err, ErrGenerationInFlight)

	close(provider.release)
	drain(t, ch)

	// The session stays usable once the first generation finished.
	provider2 := newFakeProvider("ok")
	assistant.generator = NewGenerator(provider2, assistant.memory, GeneratorConfig{})
	ch, err = assistant.Answer(context.Background(), GenerateOptions{Question: "third"})
	require.NoError(t, err)
	drain(t, ch)
}

func TestAssistantStopCancelsMidStream(t *testing.T) {
	full := strings.Repeat("abcde", 200)
	provider := newFakeProvider(splitChars(full)...)
	history := newFakeHistory()
	assistant := newTestAssistant(t, provider, history, AssistantConfig{Labeled: true})

	stopAt := 42
	provider.afterFragment = func(i int) {
		if i == stopAt-1 {
			assistant.Stop()
		}
	}

	ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: "q"})
	require.NoError(t, err)
	chunks, terminal := drain(t, ch)

	assert.Equal(t, EventDone, terminal.Kind)
	assert.Equal(t, StateCancelled, terminal.State)

	var got strings.Builder
	for _, c := range chunks {
		got.WriteString(c.Text)
	}
	assert.Equal(t, full[:stopAt], got.String(), "cancellation must lose no accepted fragment")

	// The partial answer is still persisted and retrievable later.
	assert.Equal(t, 1, history.count(assistant.SessionID()))
}

func TestAssistantSurfacesPersistFailure(t *testing.T) {
	provider := newFakeProvider(splitChars("streamed text already delivered")...)
	history := newFakeHistory()
	history.appendErr = fmt.Errorf("database unavailable")
	assistant := newTestAssistant(t, provider, history, AssistantConfig{Labeled: true})

	ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: "q"})
	require.NoError(t, err)
	chunks, terminal := drain(t, ch)

	assert.NotEmpty(t, chunks, "persist failure must not retract already-streamed text")
	assert.Equal(t, EventError, terminal.Kind)
	assert.ErrorIs(t, terminal.Err, ErrPersist)
}

func TestAssistantFailureBeforeOutputSkipsSideEffects(t *testing.T) {
	provider := newFakeProvider(splitChars("doomed")...)
	provider.failAfter = 3 // below the buffer threshold, so no chunk was flushed
	history := newFakeHistory()
	assistant := newTestAssistant(t, provider, history, AssistantConfig{})

	ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: "q"})
	require.NoError(t, err)
	chunks, terminal := drain(t, ch)

	assert.Empty(t, chunks)
	assert.Equal(t, EventError, terminal.Kind)
	assert.ErrorIs(t, terminal.Err, ErrGenerationFailed)
	assert.Equal(t, 0, history.count(assistant.SessionID()), "a failure before any output persists nothing")
	assert.Empty(t, provider.generatePrompts, "no topic labeling without a first exchange")
}

func TestAssistantFailureAfterOutputStillPersists(t *testing.T) {
	full := strings.Repeat("abcd", 10)
	provider := newFakeProvider(splitChars(full)...)
	provider.failAfter = 25 // two full buffers flushed, the third lost mid-fill
	history := newFakeHistory()
	assistant := newTestAssistant(t, provider, history, AssistantConfig{Labeled: true})

	ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: "q"})
	require.NoError(t, err)
	chunks, terminal := drain(t, ch)

	assert.Equal(t, EventError, terminal.Kind)
	assert.ErrorIs(t, terminal.Err, ErrGenerationFailed)

	var got strings.Builder
	for _, c := range chunks {
		got.WriteString(c.Text)
	}
	assert.Equal(t, full[:20], got.String())

	// What the caller already received survives the failure.
	require.Equal(t, 1, history.count(assistant.SessionID()))
	stored, err := history.LoadInteractions(context.Background(), assistant.SessionID())
	require.NoError(t, err)
	assert.Equal(t, full[:20], stored[0].Answer, "exactly the delivered text is persisted")
}

func TestAssistantOrderingPersistThenIndex(t *testing.T) {
	provider := newFakeProvider(splitChars("ordered answer")...)
	history := newFakeHistory()
	assistant := newTestAssistant(t, provider, history, AssistantConfig{Labeled: true})

	memorySizeAtPersist := -1
	history.onAppend = func() {
		memorySizeAtPersist = len(assistant.Memory().Log())
	}

	memory, err := vector.NewMemory(context.Background(), vector.NewIndex(stubEmbedder{}),
		vector.MemoryConfig{Mode: vector.ModeSimilarityWithLog})
	require.NoError(t, err)
	assistant.memory = memory
	assistant.generator = NewGenerator(provider, memory, GeneratorConfig{BufferSize: 10})

	ch, err := assistant.Answer(context.Background(), GenerateOptions{Question: "q"})
	require.NoError(t, err)
	drain(t, ch)

	assert.Equal(t, 0, memorySizeAtPersist,
		"the durable append must happen before the interaction becomes retrievable")
	assert.Len(t, memory.Log(), 2, "the interaction is indexed after persistence")
}
