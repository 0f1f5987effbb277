// Package config loads the YAML configuration of colorctl.
//
// The file is named by the --config flag or the COLORKIT_CONFIG
// environment variable. Missing fields keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wudi/colorkit/cmm"
	"github.com/wudi/colorkit/observability"
	"github.com/wudi/colorkit/recovery"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "COLORKIT_CONFIG"

// Config is the colorctl configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Convert ConvertConfig `yaml:"convert"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is text or json.
	Format string `yaml:"format" validate:"oneof=text json"`
}

// StoreConfig locates the persisted option store.
type StoreConfig struct {
	Path     string `yaml:"path" validate:"required_unless=InMemory true"`
	InMemory bool   `yaml:"in_memory"`

	// Scope is loaded before command line options are applied.
	Scope string `yaml:"scope"`
}

// ConvertConfig holds conversion defaults.
type ConvertConfig struct {
	Intent     string `yaml:"intent"`
	MaxRetries int    `yaml:"max_retries" validate:"gte=0,lte=1000"`

	// Recovery is strict or lenient.
	Recovery string `yaml:"recovery" validate:"oneof=strict lenient"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return &Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{Path: filepath.Join(dir, "colorkit", "options")},
		Convert: ConvertConfig{
			Intent:     "perceptual",
			MaxRetries: 8,
			Recovery:   "strict",
		},
	}
}

// Load reads path over the defaults. An empty path falls back to
// COLORKIT_CONFIG, and to the defaults alone when that is unset too.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return c.Validate()
}

// Validate checks field constraints and the rendering intent.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return err
	}
	_, err := cmm.ParseIntent(c.Convert.Intent)
	return err
}

// Intent returns the parsed default rendering intent.
func (c *Config) Intent() cmm.RenderingIntent {
	i, _ := cmm.ParseIntent(c.Convert.Intent)
	return i
}

// Strategy returns the configured recovery strategy.
func (c *Config) Strategy() recovery.Strategy {
	if c.Convert.Recovery == "lenient" {
		return recovery.NewLenientStrategy()
	}
	return recovery.NewStrictStrategy()
}

// Level maps the log level to slog.
func (c *Config) Level() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) observability.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	var h slog.Handler
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return observability.NewSlogLogger(slog.New(h))
}
