package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider kind.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider kinds to their constructor functions for each core
// capability. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	llm         map[string]func(ProviderEntry) (llm.Provider, error)
	embedder    map[string]func(ProviderEntry) (embeddings.Provider, error)
	vectorStore map[string]func(ProviderEntry) (memory.VectorStore, error)
	graphStore  map[string]func(ProviderEntry) (memory.GraphStore, error)
	historyLog  map[string]func(ProviderEntry) (memory.HistoryLog, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:         make(map[string]func(ProviderEntry) (llm.Provider, error)),
		embedder:    make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
		vectorStore: make(map[string]func(ProviderEntry) (memory.VectorStore, error)),
		graphStore:  make(map[string]func(ProviderEntry) (memory.GraphStore, error)),
		historyLog:  make(map[string]func(ProviderEntry) (memory.HistoryLog, error)),
	}
}

// RegisterLLM registers an LLM provider factory under kind.
// Subsequent calls with the same kind overwrite the previous registration.
func (r *Registry) RegisterLLM(kind string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[kind] = factory
}

// RegisterEmbedder registers an embeddings provider factory under kind.
func (r *Registry) RegisterEmbedder(kind string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedder[kind] = factory
}

// RegisterVectorStore registers a vector store factory under kind.
func (r *Registry) RegisterVectorStore(kind string, factory func(ProviderEntry) (memory.VectorStore, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vectorStore[kind] = factory
}

// RegisterGraphStore registers a graph store factory under kind.
func (r *Registry) RegisterGraphStore(kind string, factory func(ProviderEntry) (memory.GraphStore, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphStore[kind] = factory
}

// RegisterHistoryLog registers a history log factory under kind.
func (r *Registry) RegisterHistoryLog(kind string, factory func(ProviderEntry) (memory.HistoryLog, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyLog[kind] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Kind.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that kind.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Kind)
	}
	return factory(entry)
}

// CreateEmbedder instantiates an embeddings provider using the factory registered under entry.Kind.
func (r *Registry) CreateEmbedder(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embedder[entry.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embedder/%q", ErrProviderNotRegistered, entry.Kind)
	}
	return factory(entry)
}

// CreateVectorStore instantiates a vector store using the factory registered under entry.Kind.
func (r *Registry) CreateVectorStore(entry ProviderEntry) (memory.VectorStore, error) {
	r.mu.RLock()
	factory, ok := r.vectorStore[entry.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vector_store/%q", ErrProviderNotRegistered, entry.Kind)
	}
	return factory(entry)
}

// CreateGraphStore instantiates a graph store using the factory registered under entry.Kind.
func (r *Registry) CreateGraphStore(entry ProviderEntry) (memory.GraphStore, error) {
	r.mu.RLock()
	factory, ok := r.graphStore[entry.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: graph_store/%q", ErrProviderNotRegistered, entry.Kind)
	}
	return factory(entry)
}

// CreateHistoryLog instantiates a history log using the factory registered under entry.Kind.
func (r *Registry) CreateHistoryLog(entry ProviderEntry) (memory.HistoryLog, error) {
	r.mu.RLock()
	factory, ok := r.historyLog[entry.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: history_log/%q", ErrProviderNotRegistered, entry.Kind)
	}
	return factory(entry)
}
