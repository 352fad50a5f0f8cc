package dispatch

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"catmcp/internal/domain"
)

// Call is the mutable unit threaded through the middleware chain. Middleware
// may rewrite Args or attach extras before calling next, or post-process the
// result after next returns.
type Call struct {
	Meta domain.ToolMetadata
	Args json.RawMessage
	Exec *domain.ExecContext
}

// Next invokes the remainder of the chain.
type Next func(ctx context.Context, call *Call) (any, error)

// Middleware is one cross-cutting wrapper. Lower priority runs earlier, as
// the outer layer. Equal priorities keep insertion order.
type Middleware struct {
	Name     string
	Priority int
	Handle   func(ctx context.Context, call *Call, next Next) (any, error)
}

// Pipeline composes middleware around a final handler, chain-of-responsibility
// style.
type Pipeline struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

func NewPipeline(middlewares ...Middleware) *Pipeline {
	p := &Pipeline{}
	p.Use(middlewares...)
	return p
}

// Use appends middleware and re-sorts ascending by priority. The sort is
// stable so same-priority middleware preserves registration order.
func (p *Pipeline) Use(ms ...Middleware) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.middlewares = append(p.middlewares, ms...)
	sort.SliceStable(p.middlewares, func(i, j int) bool {
		return p.middlewares[i].Priority < p.middlewares[j].Priority
	})
}

// Run threads the call through the chain and into final. Middleware may
// short-circuit by returning without calling next.
func (p *Pipeline) Run(ctx context.Context, call *Call, final Next) (any, error) {
	p.mu.RLock()
	chain := append([]Middleware(nil), p.middlewares...)
	p.mu.RUnlock()

	next := final
	for i := len(chain) - 1; i >= 0; i-- {
		m := chain[i]
		inner := next
		next = func(ctx context.Context, call *Call) (any, error) {
			return m.Handle(ctx, call, inner)
		}
	}
	return next(ctx, call)
}
