package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"ai-learnpath-be/pkg/llm"
	"ai-learnpath-be/pkg/vector"
)

const (
	// DefaultBufferSize is the flush threshold in characters. Buffering
	// amortizes the cost of yielding many tiny fragments while keeping
	// latency bounded: no fragment waits longer than one buffer-fill.
	DefaultBufferSize = 100

	defaultSystemPrompt = `You are a research assistant specializing in deep technical exploration.
Help the user understand complex topics with clear, detailed, accurate explanations.
Build upon the earlier parts of the conversation where they are relevant.

At the end of your response include 3 to 4 thought-provoking follow-up questions
that progress from fundamental concepts to advanced applications.`
)

// errCancelled stops the provider stream when the token is observed set.
var errCancelled = errors.New("chat: generation cancelled")

// GenerateOptions configures one generation call.
type GenerateOptions struct {
	Question          string
	Model             string // override the provider default
	ExtraInstructions string
}

// GeneratorConfig tunes a Generator.
type GeneratorConfig struct {
	BufferSize   int
	SystemPrompt string
	Temperature  float64
}

// Generator drives one language-model call per Generate invocation:
// it retrieves relevant history from memory, composes the prompt, consumes
// the model's incremental output, and emits buffered chunks as a
// result-typed event stream.
type Generator struct {
	provider llm.Provider
	memory   *vector.Memory
	cfg      GeneratorConfig
	state    atomic.Int32
}

func NewGenerator(provider llm.Provider, memory *vector.Memory, cfg GeneratorConfig) *Generator {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &Generator{
		provider: provider,
		memory:   memory,
		cfg:      cfg,
	}
}

func (g *Generator) State() State {
	return State(g.state.Load())
}

// Generate runs one generation and returns its event stream. The stream
// always terminates with exactly one EventDone or EventError. The token
// may be nil when cancellation is not needed.
func (g *Generator) Generate(ctx context.Context, opts GenerateOptions, token *CancelToken) <-chan Event {
	out := make(chan Event, 1)
	go g.run(ctx, opts, token, out)
	return out
}

func (g *Generator) run(ctx context.Context, opts GenerateOptions, token *CancelToken, out chan<- Event) {
	defer close(out)
	g.state.Store(int32(StateGenerating))

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fail := func(err error) {
		send(Event{Kind: EventError, State: StateFailed, Err: err})
		// The failure travels with the event; the generator itself goes
		// back to Idle so the session can retry.
		g.state.Store(int32(StateIdle))
	}

	if strings.TrimSpace(opts.Question) == "" {
		fail(vector.ErrInvalidInput)
		return
	}

	// Retrieval failure aborts the answer: silently generating without the
	// retrieved context would degrade quality without telling anyone.
	history, err := g.memory.QueryHistory(ctx, opts.Question)
	if err != nil {
		fail(err)
		return
	}

	messages := g.composePrompt(history, opts)
	promptChars := 0
	for _, msg := range messages {
		promptChars += len(msg.Content)
	}

	start := time.Now()
	responseChars := 0
	var buf strings.Builder

	meta := func() Metadata {
		return Metadata{
			Timestamp:      time.Now(),
			Model:          opts.Model,
			LatencySeconds: time.Since(start).Seconds(),
			ResponseChars:  responseChars,
			PromptChars:    promptChars,
		}
	}

	flush := func() bool {
		if buf.Len() == 0 {
			return true
		}
		text := buf.String()
		buf.Reset()
		responseChars += len(text)
		return send(Event{Kind: EventChunk, Text: text, Meta: meta()})
	}

	onDelta := func(delta string) error {
		if token != nil && token.Cancelled() {
			return errCancelled
		}
		buf.WriteString(delta)
		if buf.Len() >= g.cfg.BufferSize {
			if !flush() {
				return ctx.Err()
			}
		}
		return nil
	}

	llmOpts := []llm.Option{llm.WithTemperature(g.cfg.Temperature)}
	if opts.Model != "" {
		llmOpts = append(llmOpts, llm.WithModel(opts.Model))
	}

	streamErr := g.provider.Stream(ctx, messages, onDelta, llmOpts...)

	switch {
	case errors.Is(streamErr, errCancelled):
		// Flush whatever was buffered so no accepted fragment is lost.
		flush()
		g.state.Store(int32(StateCancelled))
		send(Event{Kind: EventDone, Meta: meta(), State: StateCancelled})

	case streamErr != nil:
		// The partial buffer is dropped on purpose: the caller must not be
		// handed text it cannot distinguish from a complete answer.
		fail(fmt.Errorf("%w: %v", ErrGenerationFailed, streamErr))

	default:
		flush()
		g.state.Store(int32(StateCompleted))
		send(Event{Kind: EventDone, Meta: meta(), State: StateCompleted})
	}
}

// composePrompt merges the retrieved history, the question, and any extra
// instructions into the provider message list.
func (g *Generator) composePrompt(history []string, opts GenerateOptions) []llm.Message {
	var system strings.Builder
	system.WriteString(g.cfg.SystemPrompt)

	if len(history) > 0 {
		system.WriteString("\n\nContext from previous discussions:\n")
		for _, h := range history {
			system.WriteString("- ")
			system.WriteString(h)
			system.WriteString("\n")
		}
	}
	if opts.ExtraInstructions != "" {
		system.WriteString("\nAdditional instructions: ")
		system.WriteString(opts.ExtraInstructions)
	}

	return []llm.Message{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: opts.Question},
	}
}
