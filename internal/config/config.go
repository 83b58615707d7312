// Package config loads growlight's configuration: a main YAML document
// plus an optional legacy INI drop-in for host-specific overrides, and a
// glob-based device ignore list (ambient stack, spec-adjacent since the
// distilled spec is silent on configuration but every component needs
// one).
package config

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mvo5/goconfigparser"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Config is the main YAML document: target-root prefix, BLKPG retry
// settings, and the device ignore-glob list.
type Config struct {
	TargetRootPrefix string   `yaml:"target_root_prefix"`
	IgnoreGlobs      []string `yaml:"ignore_globs"`
	Retry            RetryConfig `yaml:"retry"`
}

// RetryConfig holds the BLKPG retry settings read from the config and
// its INI overrides. The blkpg bridge does not read them: it always uses
// its built-in three-attempt 0s/3s/3s ladder.
type RetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelaySeconds int `yaml:"delay_seconds"`
}

// Load reads the main YAML config from path. Retry attempts and delay
// default to 3 when the document leaves them out; a value given
// explicitly, including 0, is kept.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{
		Retry: RetryConfig{Attempts: 3, DelaySeconds: 3},
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, xerrors.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyOverrides merges a legacy INI drop-in's [growlight] section into
// cfg, for host-specific overrides that predate the YAML config (spec's
// ambient config layer).
func ApplyOverrides(cfg *Config, iniPath string) error {
	if _, err := os.Stat(iniPath); os.IsNotExist(err) {
		return nil
	}
	parser := goconfigparser.New()
	if err := parser.ReadFile(iniPath); err != nil {
		return xerrors.Errorf("read ini overrides %s: %w", iniPath, err)
	}
	if v, err := parser.Get("growlight", "target_root_prefix"); err == nil && v != "" {
		cfg.TargetRootPrefix = v
	}
	if v, err := parser.GetInt("growlight", "retry_attempts"); err == nil {
		cfg.Retry.Attempts = v
	}
	if v, err := parser.GetInt("growlight", "retry_delay_seconds"); err == nil {
		cfg.Retry.DelaySeconds = v
	}
	return nil
}

// Ignored reports whether name matches any of cfg's glob-style device
// ignore patterns (e.g. "loop*", "ram[0-9]*").
func (c *Config) Ignored(name string) bool {
	for _, pattern := range c.IgnoreGlobs {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
