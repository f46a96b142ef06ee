package tokenizer

import (
	"fmt"
	"sort"
	"sync"

	"logsift/internal/apperr"
)

// DefaultName is the tokenizer recorded in models that carry no manifest
const DefaultName = "log"

// Tokenizer splits a line of text into normalized tokens.
// Implementations must be pure: training and scoring rely on identical output.
type Tokenizer interface {
	// Tokenize converts a raw line into a token sequence
	Tokenize(line string) []string

	// Name identifies the tokenizer in model manifests
	Name() string
}

// Registry maps tokenizer names to implementations
type Registry struct {
	tokenizers map[string]Tokenizer
	mu         sync.RWMutex
}

// NewRegistry creates a registry with the built-in tokenizers registered
func NewRegistry() *Registry {
	r := &Registry{tokenizers: make(map[string]Tokenizer)}
	r.Register(NewLogTokenizer())
	return r
}

// Register adds or replaces a tokenizer under its own name
func (r *Registry) Register(t Tokenizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenizers[t.Name()] = t
}

// Get returns the tokenizer registered under name
func (r *Registry) Get(name string) (Tokenizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = DefaultName
	}
	t, ok := r.tokenizers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tokenizer %q: %w", name, apperr.ErrConfiguration)
	}
	return t, nil
}

// Names lists the registered tokenizers in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tokenizers))
	for name := range r.tokenizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
