// Package config loads the server configuration from a YAML file, expanding
// ${ENV_VAR} references and applying defaults before validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"catmcp/internal/domain"
)

// Config is the normalized server configuration.
type Config struct {
	Backstage     BackstageConfig
	Discovery     DiscoveryConfig
	Cache         CacheConfig
	Batch         BatchConfig
	Observability ObservabilityConfig
	HTTP          HTTPConfig
	Caller        CallerConfig
	ManifestPath  string
}

type BackstageConfig struct {
	BaseURL string
	Token   string
}

type DiscoveryConfig struct {
	Mode     domain.DiscoveryMode
	ToolsDir string
	Watch    bool
}

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
	Store      domain.CacheStoreKind
	Path       string
}

type BatchConfig struct {
	FlushWindow time.Duration
}

type ObservabilityConfig struct {
	ListenAddress string
	Metrics       bool
	Healthz       bool
}

type HTTPConfig struct {
	Enabled       bool
	ListenAddress string
	Path          string
}

type CallerConfig struct {
	Scopes []string
}

type rawConfig struct {
	Backstage     rawBackstageConfig     `mapstructure:"backstage"`
	Discovery     rawDiscoveryConfig     `mapstructure:"discovery"`
	Cache         rawCacheConfig         `mapstructure:"cache"`
	Batch         rawBatchConfig         `mapstructure:"batch"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
	HTTP          rawHTTPConfig          `mapstructure:"http"`
	Caller        rawCallerConfig        `mapstructure:"caller"`
	ManifestPath  string                 `mapstructure:"manifestPath"`
}

type rawBackstageConfig struct {
	BaseURL string `mapstructure:"baseURL"`
	Token   string `mapstructure:"token"`
}

type rawDiscoveryConfig struct {
	Mode     string `mapstructure:"mode"`
	ToolsDir string `mapstructure:"toolsDir"`
	Watch    bool   `mapstructure:"watch"`
}

type rawCacheConfig struct {
	TTLSeconds int    `mapstructure:"ttlSeconds"`
	MaxEntries int    `mapstructure:"maxEntries"`
	Store      string `mapstructure:"store"`
	Path       string `mapstructure:"path"`
}

type rawBatchConfig struct {
	FlushWindowMs int `mapstructure:"flushWindowMs"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
	Metrics       bool   `mapstructure:"metrics"`
	Healthz       bool   `mapstructure:"healthz"`
}

type rawHTTPConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listenAddress"`
	Path          string `mapstructure:"path"`
}

type rawCallerConfig struct {
	Scopes []string `mapstructure:"scopes"`
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backstage.baseURL", domain.DefaultBackstageBaseURL)
	v.SetDefault("discovery.mode", string(domain.DefaultDiscoveryMode))
	v.SetDefault("discovery.toolsDir", domain.DefaultToolsDirSuffix)
	v.SetDefault("cache.ttlSeconds", int(domain.DefaultCacheTTL/time.Second))
	v.SetDefault("cache.maxEntries", domain.DefaultCacheMaxEntries)
	v.SetDefault("cache.store", string(domain.CacheStoreMemory))
	v.SetDefault("batch.flushWindowMs", int(domain.DefaultBatchFlushWait/time.Millisecond))
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.metrics", true)
	v.SetDefault("observability.healthz", true)
	v.SetDefault("http.listenAddress", domain.DefaultHTTPListenAddress)
	v.SetDefault("http.path", domain.DefaultHTTPPath)
}

// Loader reads and validates config files.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

// Load reads a config file. A missing path yields defaults.
func (l *Loader) Load(path string) (Config, error) {
	v := newConfigViper()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		expanded, missing := expandEnv(string(data))
		if len(missing) > 0 {
			l.logger.Warn("missing environment variables in config",
				zap.String("path", path),
				zap.Strings("missing", missing),
			)
		}
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg, errs := normalize(raw)
	if len(errs) > 0 {
		return Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

func normalize(raw rawConfig) (Config, []string) {
	var errs []string

	mode := domain.DiscoveryMode(strings.ToLower(strings.TrimSpace(raw.Discovery.Mode)))
	if mode == "" {
		mode = domain.DefaultDiscoveryMode
	}
	if mode != domain.DiscoveryModeStatic && mode != domain.DiscoveryModeDynamic {
		errs = append(errs, "discovery.mode must be static or dynamic")
	}
	toolsDir := strings.TrimSpace(raw.Discovery.ToolsDir)
	if mode == domain.DiscoveryModeDynamic && toolsDir == "" {
		errs = append(errs, "discovery.toolsDir is required for dynamic discovery")
	}

	if raw.Cache.TTLSeconds <= 0 {
		errs = append(errs, "cache.ttlSeconds must be > 0")
	}
	if raw.Cache.MaxEntries <= 0 {
		errs = append(errs, "cache.maxEntries must be > 0")
	}
	store := domain.CacheStoreKind(strings.ToLower(strings.TrimSpace(raw.Cache.Store)))
	if store == "" {
		store = domain.CacheStoreMemory
	}
	if store != domain.CacheStoreMemory && store != domain.CacheStoreBolt {
		errs = append(errs, "cache.store must be memory or bolt")
	}
	if store == domain.CacheStoreBolt && strings.TrimSpace(raw.Cache.Path) == "" {
		errs = append(errs, "cache.path is required when cache.store is bolt")
	}

	if raw.Batch.FlushWindowMs <= 0 {
		errs = append(errs, "batch.flushWindowMs must be > 0")
	}

	baseURL := strings.TrimSpace(raw.Backstage.BaseURL)
	if baseURL == "" {
		errs = append(errs, "backstage.baseURL is required")
	}

	scopes := make([]string, 0, len(raw.Caller.Scopes))
	for i, scope := range raw.Caller.Scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			errs = append(errs, fmt.Sprintf("caller.scopes[%d] must not be empty", i))
			continue
		}
		scopes = append(scopes, trimmed)
	}

	return Config{
		Backstage: BackstageConfig{
			BaseURL: baseURL,
			Token:   raw.Backstage.Token,
		},
		Discovery: DiscoveryConfig{
			Mode:     mode,
			ToolsDir: toolsDir,
			Watch:    raw.Discovery.Watch,
		},
		Cache: CacheConfig{
			TTL:        time.Duration(raw.Cache.TTLSeconds) * time.Second,
			MaxEntries: raw.Cache.MaxEntries,
			Store:      store,
			Path:       strings.TrimSpace(raw.Cache.Path),
		},
		Batch: BatchConfig{
			FlushWindow: time.Duration(raw.Batch.FlushWindowMs) * time.Millisecond,
		},
		Observability: ObservabilityConfig{
			ListenAddress: strings.TrimSpace(raw.Observability.ListenAddress),
			Metrics:       raw.Observability.Metrics,
			Healthz:       raw.Observability.Healthz,
		},
		HTTP: HTTPConfig{
			Enabled:       raw.HTTP.Enabled,
			ListenAddress: strings.TrimSpace(raw.HTTP.ListenAddress),
			Path:          strings.TrimSpace(raw.HTTP.Path),
		},
		Caller: CallerConfig{
			Scopes: scopes,
		},
		ManifestPath: strings.TrimSpace(raw.ManifestPath),
	}, errs
}
