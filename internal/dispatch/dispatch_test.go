package dispatch

import (
	"context"
	"encoding/json"

	"catmcp/internal/domain"
)

// stubTool is a configurable tool for tests. Pointer identity keys the
// registry, so each test constructs its own instances.
type stubTool struct {
	fn func(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error)
}

func (t *stubTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	if t.fn == nil {
		return "ok", nil
	}
	return t.fn(ctx, args, ec)
}

func echoTool() *stubTool {
	return &stubTool{fn: func(_ context.Context, args json.RawMessage, _ *domain.ExecContext) (any, error) {
		return string(args), nil
	}}
}
