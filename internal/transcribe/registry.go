package transcribe

import (
	"sync"
)

// Factory builds a Transcriber for a model size.
type Factory func(modelSize string) Transcriber

// Registry caches one Transcriber per model size so expensive model setup is
// paid once per process. Entries are created on demand and never evicted; the
// set of model sizes is small and fixed, so growth is bounded.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	entries map[string]Transcriber
}

// NewRegistry creates an empty registry backed by factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		entries: make(map[string]Transcriber),
	}
}

// Get returns the cached Transcriber for modelSize, constructing it on first
// use.
func (r *Registry) Get(modelSize string) Transcriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.entries[modelSize]; ok {
		return t
	}
	t := r.factory(modelSize)
	r.entries[modelSize] = t
	return t
}

// Sizes returns the model sizes currently cached, for diagnostics.
func (r *Registry) Sizes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for size := range r.entries {
		out = append(out, size)
	}
	return out
}
