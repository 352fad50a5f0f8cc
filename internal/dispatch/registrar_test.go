package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"catmcp/internal/domain"
)

func newTestServer() *mcp.Server {
	return mcp.NewServer(&mcp.Implementation{Name: "catmcp-test", Version: "0.0.1"}, &mcp.ServerOptions{HasTools: true})
}

func connectClient(t *testing.T, ctx context.Context, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ct, st := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestRegistrar_BindAndCall(t *testing.T) {
	ctx := context.Background()
	server := newTestServer()
	registrar := NewRegistrar(server, &domain.ExecContext{}, nil, nil, nil)

	require.NoError(t, registrar.Bind(echoTool(), domain.ToolMetadata{
		Name:        "echo",
		Description: "echoes arguments",
		ParamSchema: json.RawMessage(`{"type":"object","properties":{"x":{"type":"integer"}}}`),
	}))

	session := connectClient(t, ctx, server)

	list, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, list.Tools, 1)
	require.Equal(t, "echo", list.Tools[0].Name)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"x":1}`),
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text := res.Content[0].(*mcp.TextContent).Text
	var echoed string
	require.NoError(t, json.Unmarshal([]byte(text), &echoed))
	require.JSONEq(t, `{"x":1}`, echoed)
}

func TestRegistrar_ExecutionErrorBecomesStructuredResult(t *testing.T) {
	ctx := context.Background()
	server := newTestServer()
	registrar := NewRegistrar(server, &domain.ExecContext{}, nil, nil, nil)

	failing := &stubTool{fn: func(context.Context, json.RawMessage, *domain.ExecContext) (any, error) {
		return nil, domain.E(domain.ErrorTypeNotFound, "get_entity_by_ref", "no entity for ref", nil)
	}}
	require.NoError(t, registrar.Bind(failing, domain.ToolMetadata{
		Name:        "failing",
		Description: "always fails",
	}))

	session := connectClient(t, ctx, server)
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "failing"})
	require.NoError(t, err)
	require.True(t, res.IsError)

	var resp StandardErrorResponse
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &resp))
	require.Equal(t, "NOT_FOUND", resp.Error.Code)
	require.Equal(t, "failing", resp.Error.Metadata.Tool)
	require.True(t, resp.Error.Metadata.Operational)
}

func TestRegistrar_PanicClassifiesAsUnknown(t *testing.T) {
	ctx := context.Background()
	server := newTestServer()
	registrar := NewRegistrar(server, &domain.ExecContext{}, nil, nil, nil)

	panicking := &stubTool{fn: func(context.Context, json.RawMessage, *domain.ExecContext) (any, error) {
		panic("boom")
	}}
	require.NoError(t, registrar.Bind(panicking, domain.ToolMetadata{
		Name:        "panicking",
		Description: "panics",
	}))

	session := connectClient(t, ctx, server)
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "panicking"})
	require.NoError(t, err)
	require.True(t, res.IsError)

	var resp StandardErrorResponse
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &resp))
	require.Equal(t, "UNKNOWN", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "boom")
}

func TestRegistrar_DuplicateNameConflicts(t *testing.T) {
	server := newTestServer()
	registrar := NewRegistrar(server, &domain.ExecContext{}, nil, nil, nil)

	require.NoError(t, registrar.Bind(echoTool(), domain.ToolMetadata{Name: "dup", Description: "first"}))

	err := registrar.Bind(echoTool(), domain.ToolMetadata{Name: "dup", Description: "second"})
	require.Error(t, err)
	kind, ok := domain.TypeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.ErrorTypeConflict, kind)
}

func TestRegistrar_MalformedSchemaFailsBinding(t *testing.T) {
	server := newTestServer()
	registrar := NewRegistrar(server, &domain.ExecContext{}, nil, nil, nil)

	err := registrar.Bind(echoTool(), domain.ToolMetadata{
		Name:        "bad",
		Description: "schema is not a schema",
		ParamSchema: json.RawMessage(`{"type": 5}`),
	})
	require.Error(t, err)
	kind, ok := domain.TypeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.ErrorTypeInternal, kind)
}

func TestRegistrar_PruneRemovesStaleTools(t *testing.T) {
	ctx := context.Background()
	server := newTestServer()
	registrar := NewRegistrar(server, &domain.ExecContext{}, nil, nil, nil)

	require.NoError(t, registrar.Bind(echoTool(), domain.ToolMetadata{Name: "keep", Description: "stays"}))
	require.NoError(t, registrar.Bind(echoTool(), domain.ToolMetadata{Name: "drop", Description: "goes"}))
	require.ElementsMatch(t, []string{"keep", "drop"}, registrar.BoundNames())

	registrar.Prune([]string{"keep"})
	require.Equal(t, []string{"keep"}, registrar.BoundNames())

	session := connectClient(t, ctx, server)
	list, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, list.Tools, 1)
	require.Equal(t, "keep", list.Tools[0].Name)

	// A new pass may reuse a pruned name.
	require.NoError(t, registrar.Bind(echoTool(), domain.ToolMetadata{Name: "drop", Description: "back"}))
}

func TestRegistrar_ConfirmationFlowsThroughMeta(t *testing.T) {
	ctx := context.Background()
	server := newTestServer()
	pipeline := NewPipeline(ConfirmationMiddleware())
	registrar := NewRegistrar(server, &domain.ExecContext{}, pipeline, nil, nil)

	require.NoError(t, registrar.Bind(echoTool(), domain.ToolMetadata{
		Name:                 "destructive",
		Description:          "needs confirmation",
		RequiresConfirmation: true,
	}))

	session := connectClient(t, ctx, server)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "destructive"})
	require.NoError(t, err)
	require.True(t, res.IsError)

	var resp StandardErrorResponse
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &resp))
	require.Equal(t, "VALIDATION", resp.Error.Code)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name: "destructive",
		Meta: mcp.Meta{ExtraConfirm: true},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
}
