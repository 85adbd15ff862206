package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-learnpath-be/pkg/vector"
)

func collect(t *testing.T, events <-chan Event) (chunks []Event, terminal Event) {
	t.Helper()
	var sawTerminal bool
	for ev := range events {
		if ev.Kind == EventChunk {
			assert.False(t, sawTerminal, "no chunk may follow the terminal event")
			chunks = append(chunks, ev)
			continue
		}
		require.False(t, sawTerminal, "exactly one terminal event expected")
		sawTerminal = true
		terminal = ev
	}
	require.True(t, sawTerminal)
	return chunks, terminal
}

func concat(chunks []Event) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestGeneratorBufferingLaw(t *testing.T) {
	tests := []struct {
		name       string
		textLen    int
		bufferSize int
		wantChunks int
	}{
		{name: "exact multiple", textLen: 300, bufferSize: 100, wantChunks: 3},
		{name: "trailing partial", textLen: 250, bufferSize: 100, wantChunks: 3},
		{name: "below one buffer", textLen: 7, bufferSize: 100, wantChunks: 1},
		{name: "tiny buffer", textLen: 10, bufferSize: 3, wantChunks: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.textLen)
			provider := newFakeProvider(splitChars(text)...)
			memory := newTestMemory(t, stubEmbedder{})
			gen := NewGenerator(provider, memory, GeneratorConfig{BufferSize: tt.bufferSize})

			chunks, terminal := collect(t, gen.Generate(context.Background(), GenerateOptions{Question: "q"}, nil))

			assert.Len(t, chunks, tt.wantChunks, "chunk count must be ceil(N/T)")
			assert.Equal(t, text, concat(chunks), "concatenated chunks must equal the full text")
			assert.Equal(t, EventDone, terminal.Kind)
			assert.Equal(t, StateCompleted, terminal.State)
			assert.Equal(t, StateCompleted, gen.State())
		})
	}
}

func TestGeneratorChunkMetadata(t *testing.T) {
	text := strings.Repeat("a", 25)
	provider := newFakeProvider(splitChars(text)...)
	memory := newTestMemory(t, stubEmbedder{})
	gen := NewGenerator(provider, memory, GeneratorConfig{BufferSize: 10})

	chunks, terminal := collect(t, gen.Generate(context.Background(), GenerateOptions{
		Question: "what is a b-tree",
		Model:    "test-model",
	}, nil))

	require.Len(t, chunks, 3)
	assert.Equal(t, 10, chunks[0].Meta.ResponseChars)
	assert.Equal(t, 20, chunks[1].Meta.ResponseChars)
	assert.Equal(t, 25, chunks[2].Meta.ResponseChars)
	assert.Equal(t, 25, terminal.Meta.ResponseChars)

	for _, c := range chunks {
		assert.Equal(t, "test-model", c.Meta.Model)
		assert.Greater(t, c.Meta.PromptChars, len("what is a b-tree"),
			"prompt length covers the composed prompt, not just the question")
		assert.False(t, c.Meta.Timestamp.IsZero())
	}
}

func TestGeneratorCancellation(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	cancelAfter := 9 // fragments delivered before the flag is raised

	provider := newFakeProvider(splitChars(text)...)
	token := NewCancelToken()
	provider.afterFragment = func(i int) {
		if i == cancelAfter-1 {
			token.Cancel()
		}
	}

	memory := newTestMemory(t, stubEmbedder{})
	gen := NewGenerator(provider, memory, GeneratorConfig{BufferSize: 4})

	chunks, terminal := collect(t, gen.Generate(context.Background(), GenerateOptions{Question: "q"}, token))

	assert.Equal(t, text[:cancelAfter], concat(chunks),
		"emitted chunks must concatenate to exactly the fragments accepted before the observing check")
	assert.Equal(t, EventDone, terminal.Kind)
	assert.Equal(t, StateCancelled, terminal.State)
	assert.Equal(t, StateCancelled, gen.State())
}

func TestGeneratorModelFailureDropsPartialBuffer(t *testing.T) {
	provider := newFakeProvider(splitChars("short")...)
	provider.failAfter = 3 // fail while the accepted fragments sit unflushed in the buffer

	memory := newTestMemory(t, stubEmbedder{})
	gen := NewGenerator(provider, memory, GeneratorConfig{BufferSize: 100})

	chunks, terminal := collect(t, gen.Generate(context.Background(), GenerateOptions{Question: "q"}, nil))

	assert.Empty(t, chunks, "no partial buffer may be emitted on a model failure")
	assert.Equal(t, EventError, terminal.Kind)
	assert.ErrorIs(t, terminal.Err, ErrGenerationFailed)
	assert.Equal(t, StateFailed, terminal.State)
	assert.Equal(t, StateIdle, gen.State(), "a failed generator is reusable")

	// The next attempt on the same generator runs clean.
	provider.failAfter = -1
	chunks, terminal = collect(t, gen.Generate(context.Background(), GenerateOptions{Question: "q"}, nil))
	assert.Equal(t, "short", concat(chunks))
	assert.Equal(t, StateCompleted, terminal.State)
}

func TestGeneratorEmptyQuestion(t *testing.T) {
	provider := newFakeProvider("never used")
	memory := newTestMemory(t, stubEmbedder{})
	gen := NewGenerator(provider, memory, GeneratorConfig{})

	chunks, terminal := collect(t, gen.Generate(context.Background(), GenerateOptions{Question: "   "}, nil))

	assert.Empty(t, chunks)
	assert.Equal(t, EventError, terminal.Kind)
	assert.ErrorIs(t, terminal.Err, vector.ErrInvalidInput)
}

func TestGeneratorRetrievalFailureAbortsAnswer(t *testing.T) {
	provider := newFakeProvider("never streamed")
	memory := newTestMemory(t, failingEmbedder{})
	gen := NewGenerator(provider, memory, GeneratorConfig{})

	chunks, terminal := collect(t, gen.Generate(context.Background(), GenerateOptions{Question: "q"}, nil))

	assert.Empty(t, chunks)
	assert.Equal(t, EventError, terminal.Kind)
	assert.ErrorIs(t, terminal.Err, vector.ErrRetrieval)
	assert.Empty(t, provider.streamPrompts, "the model must not be called without trustworthy context")
}

func TestGeneratorPromptIncludesRetrievedHistory(t *testing.T) {
	ctx := context.Background()
	memory := newTestMemory(t, stubEmbedder{})
	require.NoError(t, memory.AddInteraction(ctx, "what is a hash table?", "a key-value structure"))

	provider := newFakeProvider(splitChars("an answer")...)
	gen := NewGenerator(provider, memory, GeneratorConfig{})

	collect(t, gen.Generate(ctx, GenerateOptions{
		Question:          "how are collisions resolved?",
		ExtraInstructions: "answer briefly",
	}, nil))

	prompt := provider.lastStreamPrompt()
	require.NotEmpty(t, prompt)
	system := prompt[0].Content
	assert.Contains(t, system, "hash table", "retrieved history must be part of the composed prompt")
	assert.Contains(t, system, "answer briefly")
	assert.Equal(t, "how are collisions resolved?", prompt[len(prompt)-1].Content)
}
