package dispatch

import (
	"sync"

	"catmcp/internal/domain"
)

// Registry associates tool implementations with their declared metadata.
// Entries are keyed by the implementation's identity (the tool value itself),
// not by the metadata name: two distinct implementations may declare the same
// name and only collide when the registrar binds them to the host surface.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.Tool]domain.ToolMetadata
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[domain.Tool]domain.ToolMetadata)}
}

// Register attaches metadata to an implementation. The first registration for
// an identity wins; later calls for the same identity are ignored so metadata
// stays immutable.
func (r *Registry) Register(tool domain.Tool, meta domain.ToolMetadata) {
	if tool == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[tool]; ok {
		return
	}
	r.entries[tool] = domain.CloneToolMetadata(meta)
}

// Lookup resolves metadata for an implementation. A miss means "not a tool",
// which is a benign state, not an error.
func (r *Registry) Lookup(tool domain.Tool) (domain.ToolMetadata, bool) {
	if tool == nil {
		return domain.ToolMetadata{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.entries[tool]
	if !ok {
		return domain.ToolMetadata{}, false
	}
	return domain.CloneToolMetadata(meta), true
}

// Len reports the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-global registry that tool constructors
// populate at definition time.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Annotate registers metadata for a tool in the default registry and returns
// the tool, so constructors can annotate inline.
func Annotate[T domain.Tool](tool T, meta domain.ToolMetadata) T {
	defaultRegistry.Register(tool, meta)
	return tool
}
