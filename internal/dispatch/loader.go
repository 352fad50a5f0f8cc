package dispatch

import (
	"context"

	"go.uber.org/zap"

	"catmcp/internal/domain"
)

// Binder is the registrar surface the loader drives.
type Binder interface {
	Bind(tool domain.Tool, meta domain.ToolMetadata) error
	// Prune unbinds tools that were registered in an earlier pass but are no
	// longer in the active set.
	Prune(active []string)
}

// Loader drives the registration pipeline: enumerate candidates, resolve
// metadata, validate, bind to the host, record a manifest entry.
type Loader struct {
	registry  *Registry
	validator *Validator
	binder    Binder
	manifest  *ManifestBuilder
	logger    *zap.Logger
	metrics   domain.Metrics
}

func NewLoader(registry *Registry, validator *Validator, binder Binder, manifest *ManifestBuilder, logger *zap.Logger, metrics domain.Metrics) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		registry:  registry,
		validator: validator,
		binder:    binder,
		manifest:  manifest,
		logger:    logger.Named("loader"),
		metrics:   metrics,
	}
}

// Load runs one registration pass. Data-quality problems (missing or invalid
// metadata) skip the candidate and continue; binding failures indicate a host
// contract violation and abort the pass. The manifest is rebuilt each pass.
func (l *Loader) Load(ctx context.Context, provider ToolProvider) error {
	candidates, err := provider.Tools(ctx)
	if err != nil {
		return err
	}

	l.manifest.Reset()

	registered := 0
	active := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		meta, ok := l.registry.Lookup(candidate.Tool)
		if !ok {
			l.logger.Warn("candidate has no metadata, skipping",
				zap.String("source", candidate.SourceLabel))
			l.recordRegistration("skipped_no_metadata")
			continue
		}

		if err := l.validator.Validate(meta, candidate.SourceLabel); err != nil {
			l.recordRegistration("skipped_invalid")
			continue
		}

		if err := l.binder.Bind(candidate.Tool, meta); err != nil {
			l.recordRegistration("bind_failed")
			return err
		}

		l.manifest.Add(meta)
		active = append(active, meta.Name)
		registered++
		l.recordRegistration("registered")
	}

	l.binder.Prune(active)

	l.logger.Info("tool registration pass complete",
		zap.Int("processed", len(candidates)),
		zap.Int("registered", registered),
	)
	return nil
}

func (l *Loader) recordRegistration(outcome string) {
	if l.metrics == nil {
		return
	}
	l.metrics.RecordRegistration(outcome)
}
