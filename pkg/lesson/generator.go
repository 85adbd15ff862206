package lesson

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ai-learnpath-be/pkg/llm"
)

// DepthLevel describes how far a thread has progressed through a topic.
// Early content establishes fundamentals, later content builds on them.
type DepthLevel string

const (
	DepthFoundation  DepthLevel = "Foundation"
	DepthConnection  DepthLevel = "Connection"
	DepthApplication DepthLevel = "Application"
	DepthInnovation  DepthLevel = "Innovation"
)

// DepthForIndex maps a content index to its depth level.
func DepthForIndex(index int) DepthLevel {
	switch {
	case index < 10:
		return DepthFoundation
	case index < 20:
		return DepthConnection
	case index < 30:
		return DepthApplication
	default:
		return DepthInnovation
	}
}

// FocusArea returns the prompt focus keyword for a depth level.
func (d DepthLevel) FocusArea() string {
	switch d {
	case DepthFoundation:
		return "core_principles"
	case DepthConnection:
		return "concept_relationships"
	case DepthApplication:
		return "practical_usage"
	default:
		return "advanced_applications"
	}
}

const untitledConcept = "Untitled Concept"

// ExtractConcept pulls the concept title from a markdown lesson body,
// taken from its first top-level heading.
func ExtractConcept(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			if title := strings.TrimSpace(strings.TrimPrefix(line, "# ")); title != "" {
				return title
			}
		}
	}
	return untitledConcept
}

const contentPrompt = `You are an expert educator creating engaging learning content about %s.
Previous concepts covered: %s
Current exploration depth: %s
Focus area: %s

Generate new, unique content that builds upon previous knowledge while introducing fresh concepts.
Ensure the content:
1. Introduces concepts not previously covered
2. Makes meaningful connections to prior knowledge
3. Progresses logically in complexity
4. Engages through practical examples
5. Prompts deeper thinking and exploration

Structure your response in markdown with these sections:
# [Title: specific concept being covered]
## Core Concept
## Detailed Explanation
## Practical Example
## Key Insights
## Practical Applications
## Related Concepts to Explore

Ensure all content is fresh and builds naturally from what has been covered.`

// Content is one generated lesson.
type Content struct {
	Concept string
	Body    string
	Index   int
}

// GeneratorConfig tunes a ContentGenerator. Zero values take defaults.
type GeneratorConfig struct {
	BatchSize   int
	Model       string
	Temperature float64
}

// DefaultBatchSize is the number of lessons produced per generation round.
const DefaultBatchSize = 3

// ContentGenerator produces progressive, non-repetitive lessons for a single
// topic. Concepts already covered are fed back into every prompt so the model
// does not repeat itself across batches or restarts.
type ContentGenerator struct {
	provider llm.Provider
	topic    string
	cfg      GeneratorConfig

	mu       sync.Mutex
	previous []string
}

// NewContentGenerator builds a generator seeded with previously covered
// concepts, typically loaded from the thread's persisted contents.
func NewContentGenerator(provider llm.Provider, topic string, previousConcepts []string, cfg GeneratorConfig) *ContentGenerator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &ContentGenerator{
		provider: provider,
		topic:    topic,
		cfg:      cfg,
		previous: append([]string(nil), previousConcepts...),
	}
}

// GenerateOne produces the lesson at the given content index and records its
// concept for subsequent prompts.
func (g *ContentGenerator) GenerateOne(ctx context.Context, index int) (Content, error) {
	depth := DepthForIndex(index)
	prompt := fmt.Sprintf(contentPrompt, g.topic, g.previousList(), depth, depth.FocusArea())

	opts := []llm.Option{}
	if g.cfg.Model != "" {
		opts = append(opts, llm.WithModel(g.cfg.Model))
	}
	if g.cfg.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(g.cfg.Temperature))
	}

	body, err := g.provider.Generate(ctx, prompt, opts...)
	if err != nil {
		return Content{}, fmt.Errorf("generate lesson %d: %w", index, err)
	}

	concept := ExtractConcept(body)
	g.mu.Lock()
	g.previous = append(g.previous, concept)
	g.mu.Unlock()

	return Content{Concept: concept, Body: body, Index: index}, nil
}

// GenerateBatch produces up to BatchSize lessons starting at startIndex. A
// failed item is skipped and generation continues with the next index; the
// last failure is returned only when nothing was produced at all. The emit
// callback, when non-nil, receives each lesson as soon as it is ready so
// callers can stream batches incrementally.
func (g *ContentGenerator) GenerateBatch(ctx context.Context, startIndex int, emit func(Content)) ([]Content, error) {
	var (
		out     []Content
		lastErr error
	)
	for i := 0; i < g.cfg.BatchSize; i++ {
		if err := ctx.Err(); err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, err
		}

		content, err := g.GenerateOne(ctx, startIndex+i)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, content)
		if emit != nil {
			emit(content)
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// Concepts returns a copy of every concept covered so far.
func (g *ContentGenerator) Concepts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.previous...)
}

func (g *ContentGenerator) previousList() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.previous) == 0 {
		return "none yet"
	}
	return strings.Join(g.previous, ", ")
}
