package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catmcp/internal/app"
	"catmcp/internal/buildinfo"
)

type rootOptions struct {
	configPath string
	transport  string
	logger     *zap.Logger
}

func main() {
	opts := rootOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:     "catmcp",
		Short:   "MCP server exposing the Backstage software catalog as tools",
		Version: buildinfo.Version,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg := zap.NewProductionConfig()
			log, err := cfg.Build()
			if err != nil {
				return err
			}
			opts.logger = log
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), &opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), &opts)
		},
	}
	serve.Flags().StringVar(&opts.transport, "transport", "", "transport override (stdio or streamable-http)")
	root.Flags().StringVar(&opts.transport, "transport", "", "transport override (stdio or streamable-http)")

	manifest := &cobra.Command{
		Use:   "manifest [output]",
		Short: "Discover and validate tools, then write the tool manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return app.New(opts.logger).BuildManifest(ctx, opts.configPath, path)
		},
	}

	root.AddCommand(serve, manifest)

	if err := root.Execute(); err != nil {
		opts.logger.Fatal("command failed", zap.Error(err))
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	ctx, cancel := signalAwareContext(parent)
	defer cancel()

	err := app.New(opts.logger).Run(ctx, app.Options{
		ConfigPath: opts.configPath,
		Transport:  app.TransportKind(opts.transport),
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
