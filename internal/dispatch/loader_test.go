package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"catmcp/internal/domain"
)

// fakeBinder records bind/prune calls and can fail on demand.
type fakeBinder struct {
	bound   []string
	pruned  [][]string
	failFor string
}

func (b *fakeBinder) Bind(tool domain.Tool, meta domain.ToolMetadata) error {
	if meta.Name == b.failFor {
		return errors.New("host rejected binding")
	}
	b.bound = append(b.bound, meta.Name)
	return nil
}

func (b *fakeBinder) Prune(active []string) {
	b.pruned = append(b.pruned, append([]string(nil), active...))
}

func TestLoader_RegistersAnnotatedCandidates(t *testing.T) {
	registry := NewRegistry()
	first := &stubTool{}
	second := &stubTool{}
	registry.Register(first, domain.ToolMetadata{Name: "get_entities", Description: "lists"})
	registry.Register(second, domain.ToolMetadata{Name: "get_locations", Description: "locations"})

	binder := &fakeBinder{}
	manifest := NewManifestBuilder(nil)
	loader := NewLoader(registry, NewValidator(nil), binder, manifest, nil, nil)

	provider := NewStaticProvider(
		Candidate{Tool: first, SourceLabel: "tools.GetEntities"},
		Candidate{Tool: second, SourceLabel: "tools.GetLocations"},
	)
	require.NoError(t, loader.Load(context.Background(), provider))

	require.Equal(t, []string{"get_entities", "get_locations"}, binder.bound)
	require.Len(t, manifest.Entries(), 2)
	require.Equal(t, [][]string{{"get_entities", "get_locations"}}, binder.pruned)
}

func TestLoader_SkipsUnannotatedCandidates(t *testing.T) {
	registry := NewRegistry()
	annotated := &stubTool{}
	registry.Register(annotated, domain.ToolMetadata{Name: "known", Description: "has metadata"})

	var outcomes []string
	metrics := &captureMetrics{onRegistration: func(outcome string) {
		outcomes = append(outcomes, outcome)
	}}

	binder := &fakeBinder{}
	loader := NewLoader(registry, NewValidator(nil), binder, NewManifestBuilder(nil), nil, metrics)

	provider := NewStaticProvider(
		Candidate{Tool: &stubTool{}, SourceLabel: "tools.Unannotated"},
		Candidate{Tool: annotated, SourceLabel: "tools.Known"},
	)
	require.NoError(t, loader.Load(context.Background(), provider))

	require.Equal(t, []string{"known"}, binder.bound)
	require.Equal(t, []string{"skipped_no_metadata", "registered"}, outcomes)
}

func TestLoader_SkipsInvalidMetadata(t *testing.T) {
	registry := NewRegistry()
	invalid := &stubTool{}
	valid := &stubTool{}
	registry.Register(invalid, domain.ToolMetadata{Name: "", Description: "no name"})
	registry.Register(valid, domain.ToolMetadata{Name: "good", Description: "fine"})

	binder := &fakeBinder{}
	manifest := NewManifestBuilder(nil)
	loader := NewLoader(registry, NewValidator(nil), binder, manifest, nil, nil)

	provider := NewStaticProvider(
		Candidate{Tool: invalid, SourceLabel: "tools.Invalid"},
		Candidate{Tool: valid, SourceLabel: "tools.Good"},
	)
	require.NoError(t, loader.Load(context.Background(), provider))

	require.Equal(t, []string{"good"}, binder.bound)
	require.Len(t, manifest.Entries(), 1)
}

func TestLoader_BindFailureAbortsPass(t *testing.T) {
	registry := NewRegistry()
	first := &stubTool{}
	poison := &stubTool{}
	registry.Register(first, domain.ToolMetadata{Name: "first", Description: "ok"})
	registry.Register(poison, domain.ToolMetadata{Name: "poison", Description: "host rejects"})

	binder := &fakeBinder{failFor: "poison"}
	loader := NewLoader(registry, NewValidator(nil), binder, NewManifestBuilder(nil), nil, nil)

	provider := NewStaticProvider(
		Candidate{Tool: first, SourceLabel: "tools.First"},
		Candidate{Tool: poison, SourceLabel: "tools.Poison"},
	)
	err := loader.Load(context.Background(), provider)
	require.Error(t, err)
	require.Empty(t, binder.pruned)
}

func TestLoader_RebuildsManifestEachPass(t *testing.T) {
	registry := NewRegistry()
	tool := &stubTool{}
	registry.Register(tool, domain.ToolMetadata{Name: "only", Description: "single"})

	binder := &fakeBinder{}
	manifest := NewManifestBuilder(nil)
	loader := NewLoader(registry, NewValidator(nil), binder, manifest, nil, nil)
	provider := NewStaticProvider(Candidate{Tool: tool, SourceLabel: "tools.Only"})

	require.NoError(t, loader.Load(context.Background(), provider))
	require.NoError(t, loader.Load(context.Background(), provider))
	require.Len(t, manifest.Entries(), 1)
}

func TestLoader_CanceledContext(t *testing.T) {
	registry := NewRegistry()
	tool := &stubTool{}
	registry.Register(tool, domain.ToolMetadata{Name: "only", Description: "single"})

	loader := NewLoader(registry, NewValidator(nil), &fakeBinder{}, NewManifestBuilder(nil), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loader.Load(ctx, NewStaticProvider(Candidate{Tool: tool, SourceLabel: "tools.Only"}))
	require.ErrorIs(t, err, context.Canceled)
}
