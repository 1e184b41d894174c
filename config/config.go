// Package config reads runtime settings from the environment and module
// manifests from YAML or JSON files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/yaml"

	"github.com/wippyai/wasm-distributed/errors"
)

// Config controls how bundles are fetched, executed and logged.
type Config struct {
	LogLevel         string        `env:"DISTRIBUTED_LOG_LEVEL"          envDefault:"info"`
	LogFormat        string        `env:"DISTRIBUTED_LOG_FORMAT"         envDefault:"console"`
	Suffix           string        `env:"DISTRIBUTED_SUFFIX"             envDefault:"umd"`
	PayloadExt       string        `env:"DISTRIBUTED_PAYLOAD_EXT"        envDefault:"wasm"`
	HostVersion      string        `env:"DISTRIBUTED_HOST_VERSION"`
	CachePath        string        `env:"DISTRIBUTED_CACHE_PATH"`
	OTLPEndpoint     string        `env:"DISTRIBUTED_OTLP_ENDPOINT"`
	HTTPTimeout      time.Duration `env:"DISTRIBUTED_HTTP_TIMEOUT"       envDefault:"15s"`
	MemoryLimitPages uint32        `env:"DISTRIBUTED_MEMORY_LIMIT_PAGES"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindParseFailure, err, "parse env")
	}
	return cfg, nil
}

// Logger builds a zap logger for the configured level and format.
// Format is "console" or "json".
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}

	var zc zap.Config
	switch strings.ToLower(c.LogFormat) {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown log format %q", c.LogFormat))
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Manifest lists the modules a host loads and the dependencies it provides.
type Manifest struct {
	// Provide maps dependency names to the values handed to bundles.
	Provide map[string]any `json:"provide,omitempty"`
	Modules []string       `json:"modules"`
}

// LoadManifest reads a manifest file. YAML and JSON are both accepted.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read manifest "+path)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a manifest. Module locations are trimmed and empty
// entries dropped.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, errors.ParseFailure(errors.PhaseConfig, "manifest", err)
	}

	modules := m.Modules[:0]
	for _, loc := range m.Modules {
		if loc = strings.TrimSpace(loc); loc != "" {
			modules = append(modules, loc)
		}
	}
	m.Modules = modules
	if len(m.Modules) == 0 {
		return nil, errors.InvalidInput(errors.PhaseConfig, "manifest lists no modules")
	}
	return &m, nil
}
