package runner

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the lookup table from job kind to Job implementation.
// Built at startup, read-only afterwards. Thread-safe for concurrent
// lookup during registration, though in practice all registration happens
// before the engine starts.
type Registry struct {
	jobs map[string]Job
	mu   sync.RWMutex
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]Job),
	}
}

// Register adds a job implementation under its kind.
// Panics if a job is already registered with that kind.
func (r *Registry) Register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := job.Kind()
	if _, exists := r.jobs[kind]; exists {
		panic(fmt.Sprintf("job already registered for kind: %s", kind))
	}
	r.jobs[kind] = job
}

// Get retrieves the job implementation for a kind.
// Returns nil if no job is registered.
func (r *Registry) Get(kind string) Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[kind]
}

// Has checks if a job is registered for a kind.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.jobs[kind]
	return exists
}

// Kinds returns all registered job kinds, sorted for stable iteration.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.jobs))
	for kind := range r.jobs {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
