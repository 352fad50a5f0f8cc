package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"catmcp/internal/domain"
)

// Candidate is a discovered tool implementation awaiting registration.
type Candidate struct {
	Tool domain.Tool
	// SourceLabel names where the candidate came from, for log context.
	SourceLabel string
}

// ToolProvider enumerates candidate tool implementations. Static and dynamic
// discovery both live behind this interface; deployments pick one.
type ToolProvider interface {
	Tools(ctx context.Context) ([]Candidate, error)
}

// StaticProvider serves a compiled-in candidate list.
type StaticProvider struct {
	candidates []Candidate
}

func NewStaticProvider(candidates ...Candidate) *StaticProvider {
	return &StaticProvider{candidates: append([]Candidate(nil), candidates...)}
}

func (p *StaticProvider) Tools(ctx context.Context) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Candidate(nil), p.candidates...), nil
}

const toolDescriptorSuffix = ".tool.yaml"

// toolDescriptor is the on-disk shape of a dynamic tool definition. The
// descriptor binds declared metadata to a compiled executor by name.
type toolDescriptor struct {
	Executor             string   `yaml:"executor"`
	Name                 string   `yaml:"name"`
	Description          string   `yaml:"description"`
	Category             string   `yaml:"category"`
	Tags                 []string `yaml:"tags"`
	Version              string   `yaml:"version"`
	Deprecated           bool     `yaml:"deprecated"`
	Cacheable            bool     `yaml:"cacheable"`
	RequiresConfirmation bool     `yaml:"requiresConfirmation"`
	RequiredScopes       []string `yaml:"requiredScopes"`
	MaxBatchSize         int      `yaml:"maxBatchSize"`
	// ParamSchema is a JSON document embedded as a string so the declared
	// property order survives the YAML round trip.
	ParamSchema string `yaml:"paramSchema"`
}

// descriptorTool wraps a compiled executor under a descriptor's own identity,
// so each descriptor gets its own registry entry even when descriptors share
// an executor.
type descriptorTool struct {
	executor domain.Tool
	source   string
}

func (t *descriptorTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	return t.executor.Execute(ctx, args, ec)
}

// DynamicProvider discovers tools from *.tool.yaml descriptor files in a
// directory. Executors are the compiled implementations descriptors may bind
// to. Metadata from each descriptor is registered into the registry as a side
// effect of enumeration, keyed by the descriptor's wrapper identity.
type DynamicProvider struct {
	dir       string
	executors map[string]domain.Tool
	registry  *Registry
	logger    *zap.Logger
}

func NewDynamicProvider(dir string, executors map[string]domain.Tool, registry *Registry, logger *zap.Logger) *DynamicProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &DynamicProvider{
		dir:       dir,
		executors: executors,
		registry:  registry,
		logger:    logger.Named("discovery"),
	}
}

func (p *DynamicProvider) Tools(ctx context.Context) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := p.descriptorFiles()
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, path := range names {
		candidate, err := p.loadDescriptor(path)
		if err != nil {
			p.logger.Warn("skip unreadable tool descriptor",
				zap.String("path", path), zap.Error(err))
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func (p *DynamicProvider) descriptorFiles() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, domain.E(domain.ErrorTypeInternal, "discover",
			fmt.Sprintf("read tools directory %s", p.dir), err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), toolDescriptorSuffix) {
			continue
		}
		names = append(names, filepath.Join(p.dir, entry.Name()))
	}
	sort.Strings(names)
	return names, nil
}

func (p *DynamicProvider) loadDescriptor(path string) (Candidate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Candidate{}, err
	}
	var desc toolDescriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return Candidate{}, fmt.Errorf("parse descriptor: %w", err)
	}
	executor, ok := p.executors[desc.Executor]
	if !ok {
		return Candidate{}, fmt.Errorf("unknown executor %q", desc.Executor)
	}

	tool := &descriptorTool{executor: executor, source: path}
	meta := domain.ToolMetadata{
		Name:                 desc.Name,
		Description:          desc.Description,
		Category:             desc.Category,
		Tags:                 desc.Tags,
		Version:              desc.Version,
		Deprecated:           desc.Deprecated,
		Cacheable:            desc.Cacheable,
		RequiresConfirmation: desc.RequiresConfirmation,
		RequiredScopes:       desc.RequiredScopes,
		MaxBatchSize:         desc.MaxBatchSize,
	}
	if strings.TrimSpace(desc.ParamSchema) != "" {
		meta.ParamSchema = json.RawMessage(desc.ParamSchema)
	}
	p.registry.Register(tool, meta)
	return Candidate{Tool: tool, SourceLabel: path}, nil
}

const watchDebounce = 200 * time.Millisecond

// Watch emits a signal when descriptor files change, debounced the same way
// the config watcher debounces. The caller re-runs the registration pass on
// each signal. The channel closes when ctx ends or the watcher fails.
func (p *DynamicProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(p.dir); err != nil {
		watcher.Close()
		return nil, err
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(ch)

		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-watcher.Errors:
				if err != nil {
					p.logger.Warn("descriptor watcher error", zap.Error(err))
				}
			case event := <-watcher.Events:
				if !strings.HasSuffix(event.Name, toolDescriptorSuffix) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
					continue
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			case <-timerChan(timer):
				timer = nil
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
