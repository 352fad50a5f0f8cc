package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"catmcp/internal/domain"
)

// ManifestBuilder accumulates a summary entry per registered tool during a
// registration pass and exports the list as pretty-printed JSON.
type ManifestBuilder struct {
	mu      sync.Mutex
	entries []domain.ManifestEntry
	logger  *zap.Logger
}

func NewManifestBuilder(logger *zap.Logger) *ManifestBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManifestBuilder{logger: logger.Named("manifest")}
}

// Reset clears accumulated entries at the start of a registration pass.
func (b *ManifestBuilder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// Add derives an entry from validated metadata and appends it.
func (b *ManifestBuilder) Add(meta domain.ToolMetadata) {
	entry := domain.ManifestEntry{
		Name:        meta.Name,
		Description: meta.Description,
		Params:      SchemaParams(meta.ParamSchema),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
}

// Entries returns a copy of the accumulated list.
func (b *ManifestBuilder) Entries() []domain.ManifestEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.ManifestEntry(nil), b.entries...)
}

// Export writes the manifest to path as pretty-printed JSON. Failures are
// reported to the caller but are meant to be logged, not fatal.
func (b *ManifestBuilder) Export(path string) error {
	entries := b.Entries()
	if entries == nil {
		entries = []domain.ManifestEntry{}
	}
	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		b.logger.Error("manifest encode failed", zap.Error(err))
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.logger.Error("manifest export failed", zap.String("path", path), zap.Error(err))
			return err
		}
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		b.logger.Error("manifest export failed", zap.String("path", path), zap.Error(err))
		return err
	}
	b.logger.Info("manifest exported", zap.String("path", path), zap.Int("tools", len(entries)))
	return nil
}

// LoadManifest reads a previously exported manifest.
func LoadManifest(path string) ([]domain.ManifestEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []domain.ManifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return entries, nil
}

// SchemaParams extracts the top-level property names of a structural object
// schema in their declared order. Any other shape yields nil. Order matters,
// so this walks the raw JSON tokens instead of unmarshaling into a map.
func SchemaParams(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(schema))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil
		}
		if key != "properties" {
			if err := skipValue(dec); err != nil {
				return nil
			}
			continue
		}

		open, err := dec.Token()
		if err != nil {
			return nil
		}
		if delim, ok := open.(json.Delim); !ok || delim != '{' {
			return nil
		}
		var params []string
		for dec.More() {
			nameTok, err := dec.Token()
			if err != nil {
				return nil
			}
			name, ok := nameTok.(string)
			if !ok {
				return nil
			}
			params = append(params, name)
			if err := skipValue(dec); err != nil {
				return nil
			}
		}
		return params
	}
	return nil
}

// skipValue consumes one complete JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	if delim == '{' || delim == '[' {
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); ok {
				switch d {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}
