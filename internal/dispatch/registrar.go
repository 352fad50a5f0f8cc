package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"catmcp/internal/domain"
)

// Registrar binds validated tool/metadata pairs to the host MCP server. It
// owns the base execution context and wraps every bound handler with the
// middleware pipeline and the selected execution strategy. Execution-time
// errors are classified and returned as structured tool results; the host
// transport never sees them as protocol failures.
type Registrar struct {
	server   *mcp.Server
	base     *domain.ExecContext
	pipeline *Pipeline
	selector StrategySelector
	logger   *zap.Logger

	mu    sync.Mutex
	bound map[string]domain.Tool
	// passBound tracks names bound since the last Prune, to catch duplicate
	// names within a single registration pass.
	passBound map[string]struct{}
}

func NewRegistrar(server *mcp.Server, base *domain.ExecContext, pipeline *Pipeline, selector StrategySelector, logger *zap.Logger) *Registrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	if selector == nil {
		direct := NewDirectStrategy()
		selector = func(domain.ToolMetadata) ExecutionStrategy { return direct }
	}
	return &Registrar{
		server:    server,
		base:      base,
		pipeline:  pipeline,
		selector:  selector,
		logger:    logger.Named("registrar"),
		bound:     make(map[string]domain.Tool),
		passBound: make(map[string]struct{}),
	}
}

// Bind registers one tool under metadata.Name on the host server. Binding
// failures are host contract violations: they are logged and returned so the
// loader can abort the pass.
func (r *Registrar) Bind(tool domain.Tool, meta domain.ToolMetadata) error {
	schema, err := inputSchema(meta.ParamSchema)
	if err != nil {
		r.logger.Error("tool binding failed",
			zap.String("tool", meta.Name), zap.Error(err))
		return domain.E(domain.ErrorTypeInternal, "bind",
			fmt.Sprintf("parameter schema for %s does not bind", meta.Name), err)
	}

	r.mu.Lock()
	if _, dup := r.passBound[meta.Name]; dup {
		r.mu.Unlock()
		err := domain.E(domain.ErrorTypeConflict, "bind",
			fmt.Sprintf("duplicate tool name %q", meta.Name), nil)
		r.logger.Error("tool binding failed", zap.String("tool", meta.Name), zap.Error(err))
		return err
	}
	r.passBound[meta.Name] = struct{}{}
	r.bound[meta.Name] = tool
	r.mu.Unlock()

	r.server.AddTool(&mcp.Tool{
		Name:        meta.Name,
		Description: meta.Description,
		InputSchema: schema,
	}, r.handler(tool, meta))

	r.logger.Debug("tool bound",
		zap.String("tool", meta.Name),
		zap.Bool("cacheable", meta.Cacheable),
		zap.Int("max_batch", meta.MaxBatchSize),
	)
	return nil
}

// Prune unbinds tools from earlier passes that are no longer active, and
// resets per-pass duplicate tracking.
func (r *Registrar) Prune(active []string) {
	keep := make(map[string]struct{}, len(active))
	for _, name := range active {
		keep[name] = struct{}{}
	}

	r.mu.Lock()
	var remove []string
	for name := range r.bound {
		if _, ok := keep[name]; !ok {
			remove = append(remove, name)
			delete(r.bound, name)
		}
	}
	r.passBound = make(map[string]struct{})
	r.mu.Unlock()

	if len(remove) > 0 {
		r.server.RemoveTools(remove...)
		r.logger.Info("stale tools removed", zap.Strings("tools", remove))
	}
}

// BoundNames lists the currently bound tool names.
func (r *Registrar) BoundNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.bound))
	for name := range r.bound {
		names = append(names, name)
	}
	return names
}

func (r *Registrar) handler(tool domain.Tool, meta domain.ToolMetadata) mcp.ToolHandler {
	strategy := r.selector(meta)
	return func(ctx context.Context, req *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		// Panic values are not errors; they classify as UNKNOWN, per the
		// uniform dispatch-boundary error policy.
		defer func() {
			if recovered := recover(); recovered != nil {
				r.logger.Error("tool panicked",
					zap.String("tool", meta.Name), zap.Any("panic", recovered))
				resp := FormatError(
					fmt.Errorf("panic: %v", recovered),
					domain.ErrorTypeUnknown, meta.Name, "execute", nil)
				result, err = errorResult(resp), nil
			}
		}()

		args := json.RawMessage(req.Params.Arguments)
		ec := r.base.WithExtras(extrasFromRequest(req))

		call := &Call{Meta: meta, Args: args, Exec: ec}
		out, execErr := r.pipeline.Run(ctx, call, func(ctx context.Context, call *Call) (any, error) {
			return strategy.Execute(ctx, tool, call.Args, call.Exec, call.Meta)
		})
		if execErr != nil {
			kind := Classify(execErr)
			resp := FormatError(execErr, kind, meta.Name, "execute", nil)
			return errorResult(resp), nil
		}
		return successResult(out)
	}
}

// extrasFromRequest lifts per-call transport metadata off the MCP request.
func extrasFromRequest(req *mcp.CallToolRequest) map[string]any {
	if req == nil || req.Params == nil || len(req.Params.Meta) == 0 {
		return nil
	}
	extras := make(map[string]any, len(req.Params.Meta))
	for k, v := range req.Params.Meta {
		extras[k] = v
	}
	return extras
}

// inputSchema parses the declared parameter schema for the host surface. A
// missing schema binds as a permissive object so argument-less tools stay
// callable.
func inputSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

func successResult(out any) (*mcp.CallToolResult, error) {
	encoded, err := json.Marshal(out)
	if err != nil {
		resp := FormatError(err, domain.ErrorTypeInternal, "", "encode", nil)
		return errorResult(resp), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(encoded)},
		},
	}, nil
}

func errorResult(resp StandardErrorResponse) *mcp.CallToolResult {
	encoded, err := json.Marshal(resp)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%q", resp.Error.Message))
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(encoded)},
		},
	}
}
