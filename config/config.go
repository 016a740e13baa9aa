// Package config loads thread pool settings from YAML or JSON with
// THREADPOOL_* environment overrides.
//
// Nested keys are addressed in the environment with a double underscore:
// THREADPOOL_METRICS__POLL_INTERVAL=500ms sets metrics.poll_interval.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "THREADPOOL_"

var (
	ErrUnsupportedFormat = errors.New("config: unsupported format")
	ErrLoadFailed        = errors.New("config: load failed")
	ErrInvalid           = errors.New("config: invalid")
)

// Format is a configuration encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config describes a thread pool and its surroundings.
type Config struct {
	// Name labels logs and metrics.
	Name string `koanf:"name" default:"threadpool"`
	// Workers is the number of workers spawned at startup.
	Workers int `koanf:"workers" default:"4"`
	// LockOSThread pins every worker to its own OS thread.
	LockOSThread bool `koanf:"lock_os_thread"`
	// LogLevel is a zap level name.
	LogLevel string        `koanf:"log_level" default:"info"`
	Metrics  MetricsConfig `koanf:"metrics"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Namespace    string        `koanf:"namespace" default:"threadpool"`
	PollInterval time.Duration `koanf:"poll_interval" default:"1s"`
	// Addr is the listen address of the /metrics endpoint; empty disables it.
	Addr string `koanf:"addr"`
}

// Default returns a Config populated from its default tags.
func Default() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// only reachable with malformed default tags
		panic(err)
	}
	return c
}

// Load decodes data in the given format on top of the defaults and applies
// environment overrides. Empty data yields the defaults.
func Load(data []byte, format Format) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	c := Default()
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile reads path, detecting the format from its extension.
func LoadFile(path string) (Config, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return Config{}, fmt.Errorf("%w: unknown extension of %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return Load(data, format)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, c.Workers)
	}
	if c.Metrics.PollInterval <= 0 {
		return fmt.Errorf("%w: metrics.poll_interval must be positive, got %s", ErrInvalid, c.Metrics.PollInterval)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// envKey maps THREADPOOL_METRICS__POLL_INTERVAL to metrics.poll_interval.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
