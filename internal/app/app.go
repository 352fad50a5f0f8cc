// Package app wires configuration, telemetry, the catalog client, and the
// dispatch core into a runnable MCP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"catmcp/internal/backstage"
	"catmcp/internal/buildinfo"
	"catmcp/internal/config"
	"catmcp/internal/dispatch"
	"catmcp/internal/domain"
	"catmcp/internal/telemetry"
	"catmcp/internal/tools"
)

const serverName = "catmcp"

// TransportKind selects how the MCP server talks to its client.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportStreamableHTTP TransportKind = "streamable-http"
)

// Options are the per-invocation knobs from the CLI.
type Options struct {
	ConfigPath string
	Transport  TransportKind
}

type App struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{logger: logger.Named("app")}
}

// Run assembles the server from config and serves until ctx ends.
func (a *App) Run(ctx context.Context, opts Options) error {
	cfg, err := config.NewLoader(a.logger).Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration loaded",
		zap.String("config", opts.ConfigPath),
		zap.String("discovery", string(cfg.Discovery.Mode)),
		zap.String("cacheStore", string(cfg.Cache.Store)),
	)

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)

	client := backstage.NewClient(backstage.ClientOptions{
		BaseURL: cfg.Backstage.BaseURL,
		Tokens:  backstage.StaticToken(cfg.Backstage.Token),
		Logger:  a.logger,
	})

	store, err := newCacheStore(cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()

	strategies := &dispatch.StrategySet{
		Direct:  dispatch.NewDirectStrategy(),
		Cached:  dispatch.NewCachedStrategy(store, a.logger, metrics),
		Batched: dispatch.NewBatchedStrategy(cfg.Batch.FlushWindow, a.logger, metrics),
	}

	pipeline := dispatch.NewPipeline()
	pipeline.Use(
		dispatch.RequestMetaMiddleware(),
		dispatch.LoggingMiddleware(a.logger),
		dispatch.MetricsMiddleware(metrics),
		dispatch.ScopeAuthMiddleware(cfg.Caller.Scopes),
		dispatch.ConfirmationMiddleware(),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: buildinfo.Version,
	}, &mcp.ServerOptions{HasTools: true})

	base := &domain.ExecContext{Catalog: client, Server: server}
	registrar := dispatch.NewRegistrar(server, base, pipeline, strategies.Select, a.logger)
	manifest := dispatch.NewManifestBuilder(a.logger)
	loader := dispatch.NewLoader(
		dispatch.DefaultRegistry(),
		dispatch.NewValidator(a.logger),
		registrar,
		manifest,
		a.logger,
		metrics,
	)

	toolSet := tools.NewSet()
	provider, dynamic, err := newProvider(cfg.Discovery, toolSet, a.logger)
	if err != nil {
		return err
	}

	if err := loader.Load(ctx, provider); err != nil {
		return err
	}
	if cfg.ManifestPath != "" {
		if err := manifest.Export(cfg.ManifestPath); err != nil {
			a.logger.Warn("manifest export failed", zap.Error(err))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if dynamic != nil && cfg.Discovery.Watch {
		changes, err := dynamic.Watch(runCtx)
		if err != nil {
			return err
		}
		go a.reloadOnChange(runCtx, changes, loader, dynamic, manifest, cfg.ManifestPath)
	}

	obsErr := make(chan error, 1)
	go func() {
		obsErr <- telemetry.StartHTTPServer(runCtx, telemetry.HTTPServerOptions{
			Addr:          cfg.Observability.ListenAddress,
			EnableMetrics: cfg.Observability.Metrics,
			EnableHealthz: cfg.Observability.Healthz,
			Registry:      registry,
		}, registrar, a.logger)
	}()

	var runErr error
	switch opts.Transport {
	case TransportStreamableHTTP, "":
		if opts.Transport == "" && !cfg.HTTP.Enabled {
			runErr = a.runStdio(runCtx, server)
			break
		}
		runErr = a.runStreamableHTTP(runCtx, server, cfg.HTTP)
	case TransportStdio:
		runErr = a.runStdio(runCtx, server)
	default:
		return errors.New("transport must be stdio or streamable-http")
	}

	cancel()
	if err := <-obsErr; err != nil && runErr == nil {
		runErr = err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func (a *App) runStdio(ctx context.Context, server *mcp.Server) error {
	a.logger.Info("serving (stdio transport)")
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (a *App) runStreamableHTTP(ctx context.Context, server *mcp.Server, cfg config.HTTPConfig) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})

	mux := http.NewServeMux()
	path := cfg.Path
	if path == "" {
		path = domain.DefaultHTTPPath
	}
	mux.Handle(path, handler)

	addr := cfg.ListenAddress
	if addr == "" {
		addr = domain.DefaultHTTPListenAddress
	}
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("serving (streamable HTTP transport)",
			zap.String("addr", addr), zap.String("path", path))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// reloadOnChange re-runs the registration pass whenever the descriptor
// directory changes.
func (a *App) reloadOnChange(ctx context.Context, changes <-chan struct{}, loader *dispatch.Loader, provider dispatch.ToolProvider, manifest *dispatch.ManifestBuilder, manifestPath string) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			a.logger.Info("tool descriptors changed, reloading")
			if err := loader.Load(ctx, provider); err != nil {
				a.logger.Error("tool reload failed", zap.Error(err))
				continue
			}
			if manifestPath != "" {
				if err := manifest.Export(manifestPath); err != nil {
					a.logger.Warn("manifest export failed", zap.Error(err))
				}
			}
		}
	}
}

func newCacheStore(cfg config.CacheConfig) (dispatch.CacheStore, error) {
	if cfg.Store == domain.CacheStoreBolt {
		return dispatch.OpenBoltCacheStore(cfg.Path, cfg.TTL)
	}
	return dispatch.NewMemoryCacheStore(cfg.TTL, cfg.MaxEntries), nil
}

func newProvider(cfg config.DiscoveryConfig, toolSet *tools.Set, logger *zap.Logger) (dispatch.ToolProvider, *dispatch.DynamicProvider, error) {
	if cfg.Mode == domain.DiscoveryModeDynamic {
		dynamic := dispatch.NewDynamicProvider(cfg.ToolsDir, toolSet.Executors(), dispatch.DefaultRegistry(), logger)
		return dynamic, dynamic, nil
	}
	return dispatch.NewStaticProvider(toolSet.Candidates()...), nil, nil
}

// BuildManifest runs discovery and validation without serving, and writes the
// manifest to path.
func (a *App) BuildManifest(ctx context.Context, configPath, path string) error {
	cfg, err := config.NewLoader(a.logger).Load(configPath)
	if err != nil {
		return err
	}
	if path == "" {
		path = cfg.ManifestPath
	}
	if path == "" {
		return errors.New("manifest path is required")
	}

	manifest := dispatch.NewManifestBuilder(a.logger)
	loader := dispatch.NewLoader(
		dispatch.DefaultRegistry(),
		dispatch.NewValidator(a.logger),
		noopBinder{},
		manifest,
		a.logger,
		nil,
	)

	toolSet := tools.NewSet()
	provider, _, err := newProvider(cfg.Discovery, toolSet, a.logger)
	if err != nil {
		return err
	}
	if err := loader.Load(ctx, provider); err != nil {
		return err
	}
	return manifest.Export(path)
}

// noopBinder lets the loader run a validation-only pass with no host server.
type noopBinder struct{}

func (noopBinder) Bind(domain.Tool, domain.ToolMetadata) error { return nil }
func (noopBinder) Prune([]string)                              {}
