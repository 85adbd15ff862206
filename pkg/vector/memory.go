package vector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-learnpath-be/pkg/llm"
)

// Mode selects the memory strategy at construction time.
type Mode int

const (
	// ModeSimilarityOnly stores interactions in the similarity index only.
	ModeSimilarityOnly Mode = iota

	// ModeSimilarityWithLog additionally appends every turn to a role-aware
	// structured log so retrieval can return typed messages.
	ModeSimilarityWithLog
)

const defaultSearchK = 5

// MemoryConfig tunes a Memory instance.
type MemoryConfig struct {
	Mode      Mode
	SearchK   int
	CacheSize int
	CacheTTL  time.Duration
	SeedTexts []string
}

// Memory wraps an Index and a QueryCache into the conversational memory
// used by chat sessions: append interactions, retrieve relevant history.
//
// The RWMutex serializes Clear against the query/add paths so there is no
// window where an old index is paired with a fresh cache or vice versa.
// The structured log has its own mutex: adds run under the read lock and
// may race each other on the slice otherwise.
type Memory struct {
	mu      sync.RWMutex
	index   *Index
	cache   *QueryCache
	mode    Mode
	searchK int

	logMu sync.Mutex
	log   []llm.Message
}

// NewMemory builds a Memory over the given index. Seed texts are added
// eagerly; a failing seed embed is surfaced to the caller.
func NewMemory(ctx context.Context, index *Index, cfg MemoryConfig) (*Memory, error) {
	if cfg.SearchK <= 0 {
		cfg.SearchK = defaultSearchK
	}
	m := &Memory{
		index:   index,
		cache:   NewQueryCache(cfg.CacheSize, cfg.CacheTTL),
		mode:    cfg.Mode,
		searchK: cfg.SearchK,
	}
	for _, seed := range cfg.SeedTexts {
		if strings.TrimSpace(seed) == "" {
			continue
		}
		if err := index.Add(ctx, seed); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// QueryHistory returns stored texts relevant to the query, most similar
// first, whitespace-stripped. The cache is consulted first; a write to the
// cache happens only after a successful retrieval.
func (m *Memory) QueryHistory(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if cached, ok := m.cache.Get(query); ok {
		return cached, nil
	}

	raw, err := m.index.Search(ctx, query, m.searchK)
	if err != nil {
		return nil, err
	}

	results := make([]string, len(raw))
	for i, text := range raw {
		results[i] = strings.TrimSpace(text)
	}

	m.cache.Put(query, results)
	return results, nil
}

// QueryMessages is the role-aware variant of QueryHistory: each result with
// a leading "Role:" prefix is parsed into a typed message; unprefixed text
// is attributed to the user.
func (m *Memory) QueryMessages(ctx context.Context, query string) ([]llm.Message, error) {
	results, err := m.QueryHistory(ctx, query)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, len(results))
	for i, text := range results {
		messages[i] = ParseTaggedMessage(text)
	}
	return messages, nil
}

// AddInteraction appends one human/AI pair to the index (and, with the log
// strategy, to the structured log). Both sides must be non-empty.
func (m *Memory) AddInteraction(ctx context.Context, humanMsg, aiMsg string) error {
	if strings.TrimSpace(humanMsg) == "" || strings.TrimSpace(aiMsg) == "" {
		return ErrInvalidInput
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.index.Add(ctx,
		fmt.Sprintf("Human: %s", humanMsg),
		fmt.Sprintf("AI: %s", aiMsg),
	); err != nil {
		return err
	}

	if m.mode == ModeSimilarityWithLog {
		m.logMu.Lock()
		m.log = append(m.log,
			llm.Message{Role: "user", Content: humanMsg},
			llm.Message{Role: "assistant", Content: aiMsg},
		)
		m.logMu.Unlock()
	}
	return nil
}

// AddMessage appends a single message, optionally tagged with a role.
func (m *Memory) AddMessage(ctx context.Context, text, role string) error {
	if strings.TrimSpace(text) == "" {
		return ErrInvalidInput
	}

	full := text
	if role != "" {
		full = fmt.Sprintf("%s: %s", role, text)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.index.Add(ctx, full); err != nil {
		return err
	}

	if m.mode == ModeSimilarityWithLog {
		r := role
		if r == "" {
			r = "user"
		}
		m.logMu.Lock()
		m.log = append(m.log, llm.Message{Role: strings.ToLower(r), Content: text})
		m.logMu.Unlock()
	}
	return nil
}

// Clear re-seeds the index and purges the cache as one atomic step.
func (m *Memory) Clear(ctx context.Context, seeds ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.index.Clear(ctx, seeds...); err != nil {
		return err
	}
	m.cache.Purge()

	m.logMu.Lock()
	m.log = nil
	m.logMu.Unlock()
	return nil
}

// Log returns a copy of the structured role-aware log. Empty unless the
// memory was built with ModeSimilarityWithLog.
func (m *Memory) Log() []llm.Message {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	out := make([]llm.Message, len(m.log))
	copy(out, m.log)
	return out
}

// ParseTaggedMessage splits "Role: content" into a typed message. The role
// tags written by AddInteraction ("Human", "AI") map onto the provider
// role names.
func ParseTaggedMessage(text string) llm.Message {
	if idx := strings.Index(text, ": "); idx > 0 && idx <= 16 {
		role := strings.ToLower(strings.TrimSpace(text[:idx]))
		content := strings.TrimSpace(text[idx+2:])
		switch role {
		case "human", "user":
			return llm.Message{Role: "user", Content: content}
		case "ai", "assistant", "model":
			return llm.Message{Role: "assistant", Content: content}
		case "system":
			return llm.Message{Role: "system", Content: content}
		}
	}
	return llm.Message{Role: "user", Content: strings.TrimSpace(text)}
}
