package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "APP_"
	defaultDir = "configs"
)

// Option adjusts Load.
type Option func(*loader)

type loader struct {
	dir string
}

// WithDir reads base.yaml and the profile file from dir instead of ./configs.
func WithDir(dir string) Option {
	return func(l *loader) { l.dir = dir }
}

// Load layers defaults, base.yaml, <profile>.yaml and APP_* variables, later
// layers winning. Missing files are skipped; an empty profile skips the
// profile layer. APP_SYNC_INTERVAL becomes sync.interval.
func Load(profile string, opts ...Option) (*Config, error) {
	l := loader{dir: defaultDir}
	for _, opt := range opts {
		opt(&l)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), ""), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	layers := []string{"base"}
	if profile != "" {
		layers = append(layers, profile)
	}

	for _, name := range layers {
		if err := l.loadYAML(k, name); err != nil {
			return nil, err
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func (l loader) loadYAML(k *koanf.Koanf, name string) error {
	path := filepath.Join(l.dir, name+".yaml")

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

func defaults() map[string]any {
	return map[string]any{
		"app": map[string]any{
			"name":        "quotekeeper",
			"version":     "dev",
			"environment": "local",
		},
		"server": map[string]any{
			"port":             DefaultServerPort,
			"host":             "0.0.0.0",
			"read_timeout":     "30s",
			"write_timeout":    "30s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
			"max_request_size": DefaultMaxRequestSize,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "json",
			"file": map[string]any{
				"enabled":     false,
				"path":        "./logs/quotekeeper.log",
				"max_size":    DefaultLogFileMaxSizeMB,
				"max_backups": DefaultLogFileMaxBackups,
				"max_age":     DefaultLogFileMaxAgeDays,
				"compress":    true,
			},
		},
		"telemetry": map[string]any{
			"enabled":       false,
			"endpoint":      "",
			"service_name":  "quotekeeper",
			"sampling_rate": 1.0,
		},
		"client": map[string]any{
			"timeout": "30s",
			"retry": map[string]any{
				"max_attempts":     DefaultClientRetryMaxAttempts,
				"initial_interval": "100ms",
				"max_interval":     "5s",
				"multiplier":       DefaultClientRetryMultiplier,
				"jitter_factor":    DefaultClientRetryJitterFactor,
			},
			"circuit_breaker": map[string]any{
				"max_failures":    DefaultClientCircuitMaxFailures,
				"timeout":         "30s",
				"half_open_limit": DefaultClientCircuitHalfOpenLimit,
			},
			"transport": map[string]any{
				"max_idle_conns":          DefaultTransportMaxIdleConns,
				"max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
				"idle_conn_timeout":       "90s",
			},
		},
		"services": map[string]any{
			"posts": map[string]any{
				"base_url": "https://jsonplaceholder.typicode.com",
				"name":     "posts-service",
			},
		},
		"storage": map[string]any{"path": DefaultStoragePath},
		"sync": map[string]any{
			"enabled":  true,
			"interval": "30s",
			"batch":    DefaultSyncBatchSize,
		},
		"notify": map[string]any{"ttl": "3s"},
	}
}
