package dispatch

import (
	"context"
	"encoding/json"

	"catmcp/internal/domain"
)

// ExecutionStrategy governs how a tool invocation is actually carried out.
type ExecutionStrategy interface {
	Execute(ctx context.Context, tool domain.Tool, args json.RawMessage, ec *domain.ExecContext, meta domain.ToolMetadata) (any, error)
}

// DirectStrategy delegates immediately with no extra state.
type DirectStrategy struct{}

func NewDirectStrategy() *DirectStrategy {
	return &DirectStrategy{}
}

func (s *DirectStrategy) Execute(ctx context.Context, tool domain.Tool, args json.RawMessage, ec *domain.ExecContext, meta domain.ToolMetadata) (any, error) {
	return tool.Execute(ctx, args, ec)
}

// StrategySelector picks the strategy for a tool from its metadata.
type StrategySelector func(meta domain.ToolMetadata) ExecutionStrategy

// StrategySet holds one instance of each strategy and selects per metadata:
// batched when coalescing is enabled, cached when cacheable, direct otherwise.
type StrategySet struct {
	Direct  *DirectStrategy
	Cached  *CachedStrategy
	Batched *BatchedStrategy
}

func (s *StrategySet) Select(meta domain.ToolMetadata) ExecutionStrategy {
	switch {
	case meta.MaxBatchSize > 1 && s.Batched != nil:
		return s.Batched
	case meta.Cacheable && s.Cached != nil:
		return s.Cached
	default:
		return s.Direct
	}
}
