// Package config loads converter settings.
// Priority: defaults < file < env < flags
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"gtc/internal/traverse"
)

// ErrUnknownFormat is returned for an output format gtc cannot write.
var ErrUnknownFormat = errors.New("unknown output format")

// Format names a converter output.
type Format string

const (
	FormatAll        Format = "all"
	FormatChrome     Format = "chrome"
	FormatTimeline   Format = "timeline"
	FormatTransforms Format = "transforms"
)

// Formats lists every concrete output in the order they are written.
var Formats = []Format{FormatChrome, FormatTimeline, FormatTransforms}

// ParseFormat resolves a case-insensitive format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatAll, FormatChrome, FormatTimeline, FormatTransforms:
		return f, nil
	case "":
		return FormatAll, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Expand returns the concrete outputs f stands for.
func (f Format) Expand() []Format {
	if f == FormatAll {
		return Formats
	}
	return []Format{f}
}

// Config holds gtc settings.
type Config struct {
	Include      string `yaml:"include"`
	Exclude      string `yaml:"exclude"`
	OutputFormat string `yaml:"output_format"`
	OutputDir    string `yaml:"output_dir"`
	LogLevel     string `yaml:"log_level"`
	Progress     bool   `yaml:"progress"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		OutputFormat: string(FormatAll),
		LogLevel:     "info",
		Progress:     true,
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var partial fileConfig
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.merge(&partial)
	return cfg, nil
}

// fileConfig is the YAML shape of Config. Unset keys keep their defaults.
type fileConfig struct {
	Include      string `yaml:"include"`
	Exclude      string `yaml:"exclude"`
	OutputFormat string `yaml:"output_format"`
	OutputDir    string `yaml:"output_dir"`
	LogLevel     string `yaml:"log_level"`
	Progress     *bool  `yaml:"progress"`
}

func (c *Config) merge(src *fileConfig) {
	if src.Include != "" {
		c.Include = src.Include
	}
	if src.Exclude != "" {
		c.Exclude = src.Exclude
	}
	if src.OutputFormat != "" {
		c.OutputFormat = src.OutputFormat
	}
	if src.OutputDir != "" {
		c.OutputDir = src.OutputDir
	}
	if src.LogLevel != "" {
		c.LogLevel = src.LogLevel
	}
	if src.Progress != nil {
		c.Progress = *src.Progress
	}
}

// ApplyEnv overrides settings from GTC_* variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	env := func(name string) (string, bool) {
		v, ok := lookup(name)
		return v, ok && v != ""
	}
	if v, ok := env("GTC_INCLUDE"); ok {
		c.Include = v
	}
	if v, ok := env("GTC_EXCLUDE"); ok {
		c.Exclude = v
	}
	if v, ok := env("GTC_OUTPUT_FORMAT"); ok {
		c.OutputFormat = v
	}
	if v, ok := env("GTC_OUTPUT_DIR"); ok {
		c.OutputDir = v
	}
	if v, ok := env("GTC_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := env("GTC_PROGRESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse GTC_PROGRESS: %w", err)
		}
		c.Progress = b
	}
	return nil
}

// Validate checks the format, patterns and log level.
func (c *Config) Validate() error {
	if _, err := ParseFormat(c.OutputFormat); err != nil {
		return err
	}
	if _, err := c.Filter(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Filter compiles the include and exclude patterns. It returns nil when
// neither is set.
func (c *Config) Filter() (*traverse.Filter, error) {
	if c.Include == "" && c.Exclude == "" {
		return nil, nil
	}
	return traverse.NewFilter(c.Include, c.Exclude)
}

// Outputs returns the concrete outputs selected by OutputFormat.
func (c *Config) Outputs() ([]Format, error) {
	f, err := ParseFormat(c.OutputFormat)
	if err != nil {
		return nil, err
	}
	return f.Expand(), nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return level, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}
