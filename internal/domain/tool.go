package domain

import (
	"context"
	"encoding/json"
)

// Tool is the contract every dispatchable tool implementation satisfies.
// Implementations must be comparable values (use pointer receivers) so they
// can serve as identity keys in the metadata registry.
type Tool interface {
	Execute(ctx context.Context, args json.RawMessage, ec *ExecContext) (any, error)
}

// ToolMetadata describes a tool declaratively. Name and Description are
// required; everything else is policy. Metadata is immutable once registered.
type ToolMetadata struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	ParamSchema          json.RawMessage `json:"paramSchema,omitempty"`
	Category             string          `json:"category,omitempty"`
	Tags                 []string        `json:"tags,omitempty"`
	Version              string          `json:"version,omitempty"`
	Deprecated           bool            `json:"deprecated,omitempty"`
	Cacheable            bool            `json:"cacheable,omitempty"`
	RequiresConfirmation bool            `json:"requiresConfirmation,omitempty"`
	RequiredScopes       []string        `json:"requiredScopes,omitempty"`
	// MaxBatchSize enables invocation coalescing when > 1. Zero means unset.
	MaxBatchSize int `json:"maxBatchSize,omitempty"`
}

// CloneToolMetadata returns a deep copy so registry entries stay immutable.
func CloneToolMetadata(meta ToolMetadata) ToolMetadata {
	out := meta
	if meta.ParamSchema != nil {
		out.ParamSchema = append(json.RawMessage(nil), meta.ParamSchema...)
	}
	if meta.Tags != nil {
		out.Tags = append([]string(nil), meta.Tags...)
	}
	if meta.RequiredScopes != nil {
		out.RequiredScopes = append([]string(nil), meta.RequiredScopes...)
	}
	return out
}

// ExecContext carries the collaborator handles and per-call transport extras
// threaded through middleware and strategies into tool execution. The handle
// fields are set once at startup; extras are attached per call. Tools must
// treat it as read-only.
type ExecContext struct {
	// Catalog is the software-catalog client handle. The dispatch core treats
	// it as opaque; tools assert the concrete type they were built against.
	Catalog any
	// Server is the host protocol server handle.
	Server any
	// Extras holds per-call transport metadata.
	Extras map[string]any
}

// WithExtras returns a per-call copy of the context with extras attached.
// The receiver is not mutated.
func (c *ExecContext) WithExtras(extras map[string]any) *ExecContext {
	out := &ExecContext{
		Catalog: c.Catalog,
		Server:  c.Server,
	}
	if len(extras) == 0 {
		return out
	}
	out.Extras = make(map[string]any, len(extras))
	for k, v := range extras {
		out.Extras[k] = v
	}
	return out
}

// Extra returns a transport extra by key.
func (c *ExecContext) Extra(key string) (any, bool) {
	if c == nil || c.Extras == nil {
		return nil, false
	}
	v, ok := c.Extras[key]
	return v, ok
}

// BoolExtra reads an extra as a bool, tolerating string encodings.
func (c *ExecContext) BoolExtra(key string) bool {
	v, ok := c.Extra(key)
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "1" || val == "yes"
	default:
		return false
	}
}

// StringsExtra reads an extra as a string slice, tolerating []any payloads.
func (c *ExecContext) StringsExtra(key string) []string {
	v, ok := c.Extra(key)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}
