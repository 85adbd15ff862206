package lesson

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-learnpath-be/pkg/llm"
)

// scriptedProvider replies with pre-baked lesson bodies in order.
type scriptedProvider struct {
	mu       sync.Mutex
	bodies   []string
	errs     []error
	calls    int
	prompts  []string
	lastOpts llm.Options
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return "", fmt.Errorf("not used")
}

func (p *scriptedProvider) Stream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, opts ...llm.Option) error {
	return fmt.Errorf("not used")
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	p.prompts = append(p.prompts, prompt)
	p.lastOpts = llm.Options{}
	for _, opt := range opts {
		opt(&p.lastOpts)
	}
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.bodies) {
		return p.bodies[i], nil
	}
	return "# Fallback\nbody", nil
}

func lessonBody(title string) string {
	return fmt.Sprintf("# %s\n## Core Concept\nsomething useful", title)
}

func TestDepthForIndex(t *testing.T) {
	tests := []struct {
		index int
		want  DepthLevel
	}{
		{0, DepthFoundation},
		{9, DepthFoundation},
		{10, DepthConnection},
		{19, DepthConnection},
		{20, DepthApplication},
		{29, DepthApplication},
		{30, DepthInnovation},
		{120, DepthInnovation},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DepthForIndex(tt.index), "index %d", tt.index)
	}
}

func TestExtractConcept(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "heading first line", body: "# Hash Functions\ncontent", want: "Hash Functions"},
		{name: "heading after preamble", body: "intro text\n# Collision Handling\nmore", want: "Collision Handling"},
		{name: "no heading", body: "plain paragraph only", want: "Untitled Concept"},
		{name: "empty heading", body: "# \ncontent", want: "Untitled Concept"},
		{name: "subheading does not count", body: "## Core Concept\nbody", want: "Untitled Concept"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractConcept(tt.body))
		})
	}
}

func TestGenerateBatchProgression(t *testing.T) {
	provider := &scriptedProvider{bodies: []string{
		lessonBody("Pointers"),
		lessonBody("Slices"),
		lessonBody("Maps"),
	}}
	gen := NewContentGenerator(provider, "Go internals", nil, GeneratorConfig{BatchSize: 3})

	var streamed []Content
	out, err := gen.GenerateBatch(context.Background(), 0, func(c Content) {
		streamed = append(streamed, c)
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, []string{"Pointers", "Slices", "Maps"}, gen.Concepts())
	assert.Equal(t, out, streamed, "emit must deliver lessons in generation order")
	assert.Equal(t, 0, out[0].Index)
	assert.Equal(t, 2, out[2].Index)

	// Later lessons see earlier concepts in their prompt.
	assert.Contains(t, provider.prompts[2], "Pointers, Slices")
	assert.Contains(t, provider.prompts[0], "none yet")
	assert.Contains(t, provider.prompts[0], string(DepthFoundation))
}

func TestGenerateBatchDepthAdvancesWithIndex(t *testing.T) {
	provider := &scriptedProvider{}
	gen := NewContentGenerator(provider, "graph theory", []string{"Vertices", "Edges"}, GeneratorConfig{BatchSize: 2})

	out, err := gen.GenerateBatch(context.Background(), 9, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Contains(t, provider.prompts[0], string(DepthFoundation), "index 9 is still foundation")
	assert.Contains(t, provider.prompts[1], string(DepthConnection), "index 10 crosses into connection depth")
	assert.Contains(t, provider.prompts[0], "Vertices, Edges", "seeded concepts appear in the first prompt")
}

func TestGenerateBatchSkipsFailedItem(t *testing.T) {
	provider := &scriptedProvider{
		bodies: []string{lessonBody("A"), "", lessonBody("C")},
		errs:   []error{nil, fmt.Errorf("model timeout"), nil},
	}
	gen := NewContentGenerator(provider, "topic", nil, GeneratorConfig{BatchSize: 3})

	out, err := gen.GenerateBatch(context.Background(), 0, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Concept)
	assert.Equal(t, "C", out[1].Concept)
	assert.Equal(t, 2, out[1].Index, "the failed index is consumed, not reused")
}

func TestGenerateBatchAllFailed(t *testing.T) {
	boom := fmt.Errorf("provider down")
	provider := &scriptedProvider{errs: []error{boom, boom, boom}}
	gen := NewContentGenerator(provider, "topic", nil, GeneratorConfig{BatchSize: 3})

	out, err := gen.GenerateBatch(context.Background(), 0, nil)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, boom)
}

func TestGenerateBatchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{}
	gen := NewContentGenerator(provider, "topic", nil, GeneratorConfig{BatchSize: 3})

	_, err := gen.GenerateBatch(ctx, 0, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, provider.calls)
}

func TestGenerateOnePassesModelOptions(t *testing.T) {
	provider := &scriptedProvider{bodies: []string{lessonBody("Heaps")}}
	gen := NewContentGenerator(provider, "data structures", nil, GeneratorConfig{
		Model:       "small-model",
		Temperature: 0.4,
	})

	_, err := gen.GenerateOne(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "small-model", provider.lastOpts.Model)
	assert.InDelta(t, 0.4, provider.lastOpts.Temperature, 1e-9)
}

func TestGenerateOneRecordsConcept(t *testing.T) {
	provider := &scriptedProvider{bodies: []string{lessonBody("Binary Trees")}}
	gen := NewContentGenerator(provider, "data structures", nil, GeneratorConfig{})

	c, err := gen.GenerateOne(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Binary Trees", c.Concept)
	assert.True(t, strings.HasPrefix(c.Body, "# Binary Trees"))
	assert.Equal(t, []string{"Binary Trees"}, gen.Concepts())
}
