// Package config reads the optional simcore.toml file that supplies
// defaults for CLI flags.
//
// Example:
//
//	db = "runs.db"
//	format = "json"
//	log_level = "info"
//	checkpoint_every = 10
//	ticks = 100
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/simcore/internal/logging"
)

// Keys recognized in a config file.
const (
	KeyDB              = "db"
	KeyFormat          = "format"
	KeyLogLevel        = "log_level"
	KeyCheckpointEvery = "checkpoint_every"
	KeyTicks           = "ticks"
)

// Config holds CLI defaults. Only keys present in the file are applied;
// use Has to tell an explicit zero from an absent key.
type Config struct {
	DB              string `toml:"db"`
	Format          string `toml:"format"`
	LogLevel        string `toml:"log_level"`
	CheckpointEvery int64  `toml:"checkpoint_every"`
	Ticks           int64  `toml:"ticks"`

	defined map[string]bool
}

// Load decodes and validates the config file at path. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return finish(&cfg, meta, path)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(&cfg, meta, "config")
}

func finish(cfg *Config, meta toml.MetaData, source string) (*Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", source, strings.Join(keys, ", "))
	}

	cfg.defined = make(map[string]bool)
	for _, key := range []string{KeyDB, KeyFormat, KeyLogLevel, KeyCheckpointEvery, KeyTicks} {
		if meta.IsDefined(key) {
			cfg.defined[key] = true
		}
	}
	cfg.DB = strings.TrimSpace(cfg.DB)
	cfg.Format = strings.TrimSpace(cfg.Format)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Has(KeyFormat) && c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	if c.Has(KeyLogLevel) {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint_every must not be negative, got %d", c.CheckpointEvery)
	}
	if c.Ticks < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", c.Ticks)
	}
	return nil
}

// Has reports whether key was set in the file. A nil Config has no keys.
func (c *Config) Has(key string) bool {
	return c != nil && c.defined[key]
}
