package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

// Duration decodes "250ms"-style strings from YAML and TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config describes one page run.
type Config struct {
	// CaptureExceptions turns exception capture on or off. Defaults to true.
	CaptureExceptions *bool `yaml:"captureExceptions" toml:"captureExceptions"`

	// Settle is how long realms may keep running timers after their scripts.
	Settle Duration `yaml:"settle" toml:"settle"`

	Page      PageConfig        `yaml:"page" toml:"page"`
	Sinks     SinksConfig       `yaml:"sinks" toml:"sinks"`
	Scrubbing ScrubbingConfig   `yaml:"scrubbing" toml:"scrubbing"`
	Metadata  map[string]string `yaml:"metadata" toml:"metadata"`
}

// PageConfig lists the scripts of the main realm and of each frame.
type PageConfig struct {
	Scripts []ScriptConfig `yaml:"scripts" toml:"scripts"`
	Frames  []FrameConfig  `yaml:"frames" toml:"frames"`
}

// FrameConfig is one attached frame.
type FrameConfig struct {
	Name    string         `yaml:"name" toml:"name"`
	Scripts []ScriptConfig `yaml:"scripts" toml:"scripts"`
}

// ScriptConfig is a script loaded from Path or given inline as Source.
type ScriptConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Path   string `yaml:"path" toml:"path"`
	Source string `yaml:"source" toml:"source"`
}

// SinksConfig selects where captured exceptions go.
type SinksConfig struct {
	Stderr  StderrConfig  `yaml:"stderr" toml:"stderr"`
	CXDB    CXDBConfig    `yaml:"cxdb" toml:"cxdb"`
	Async   AsyncConfig   `yaml:"async" toml:"async"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// StderrConfig configures the human-readable sink.
type StderrConfig struct {
	Enabled *bool `yaml:"enabled" toml:"enabled"`
	Verbose bool  `yaml:"verbose" toml:"verbose"`
}

// CXDBConfig configures persistence to cxdb. Empty Addr disables it.
type CXDBConfig struct {
	Addr      string   `yaml:"addr" toml:"addr"`
	ClientTag string   `yaml:"clientTag" toml:"clientTag"`
	Labels    []string `yaml:"labels" toml:"labels"`
}

// AsyncConfig wraps the cxdb sink in a bounded queue.
type AsyncConfig struct {
	Enabled   bool `yaml:"enabled" toml:"enabled"`
	QueueSize int  `yaml:"queueSize" toml:"queueSize"`
}

// MetricsConfig exposes Prometheus metrics. Empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// ScrubbingConfig controls redaction before events reach any sink.
type ScrubbingConfig struct {
	Enabled           *bool    `yaml:"enabled" toml:"enabled"`
	SensitivePatterns []string `yaml:"sensitivePatterns" toml:"sensitivePatterns"`
	MaxMessageSize    int      `yaml:"maxMessageSize" toml:"maxMessageSize"`
	MaxFrames         int      `yaml:"maxFrames" toml:"maxFrames"`
}

// LoadConfig reads a YAML or TOML config, chosen by file extension. Relative
// script paths are resolved against the config's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(scripts []ScriptConfig) {
		for i := range scripts {
			if p := scripts[i].Path; p != "" && !filepath.IsAbs(p) {
				scripts[i].Path = filepath.Join(dir, p)
			}
		}
	}
	resolve(c.Page.Scripts)
	for i := range c.Page.Frames {
		resolve(c.Page.Frames[i].Scripts)
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	check := func(where string, scripts []ScriptConfig) {
		for i, s := range scripts {
			if (s.Path == "") == (s.Source == "") {
				errs = append(errs, fmt.Errorf("%s script %d: exactly one of path or source is required", where, i))
			}
		}
	}
	check("page", c.Page.Scripts)

	seen := make(map[string]bool)
	for i, f := range c.Page.Frames {
		switch {
		case f.Name == "":
			errs = append(errs, fmt.Errorf("frame %d: name is required", i))
		case seen[f.Name]:
			errs = append(errs, fmt.Errorf("frame %q: duplicate name", f.Name))
		}
		seen[f.Name] = true
		check(fmt.Sprintf("frame %q", f.Name), f.Scripts)
	}

	if c.Settle < 0 {
		errs = append(errs, errors.New("settle must not be negative"))
	}
	if c.Sinks.Async.QueueSize < 0 {
		errs = append(errs, errors.New("sinks.async.queueSize must not be negative"))
	}
	return errors.Join(errs...)
}

// CaptureEnabled reports whether exception capture is on.
func (c *Config) CaptureEnabled() bool {
	return c.CaptureExceptions == nil || *c.CaptureExceptions
}

// StderrEnabled reports whether the stderr sink is on.
func (c *Config) StderrEnabled() bool {
	return c.Sinks.Stderr.Enabled == nil || *c.Sinks.Stderr.Enabled
}

// ScrubberConfig returns the scrubber settings, or false when scrubbing is off.
func (c *Config) ScrubberConfig() (jsexc.ScrubberConfig, bool) {
	if c.Scrubbing.Enabled != nil && !*c.Scrubbing.Enabled {
		return jsexc.ScrubberConfig{}, false
	}
	cfg := jsexc.DefaultScrubberConfig()
	cfg.SensitivePatterns = c.Scrubbing.SensitivePatterns
	if c.Scrubbing.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.Scrubbing.MaxMessageSize
	}
	if c.Scrubbing.MaxFrames > 0 {
		cfg.MaxFrames = c.Scrubbing.MaxFrames
	}
	return cfg, true
}

// load returns the script's name and source.
func (s ScriptConfig) load() (name, src string, err error) {
	name = s.Name
	if s.Source != "" {
		if name == "" {
			name = "inline.js"
		}
		return name, s.Source, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", "", fmt.Errorf("read script: %w", err)
	}
	if name == "" {
		name = filepath.Base(s.Path)
	}
	return name, string(data), nil
}
