// Package config holds the settings of a backup job.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/syftbackup/internal/differ"
	"github.com/openmined/syftbackup/internal/generation"
	"github.com/openmined/syftbackup/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".syftbackup", "config.json")
	DefaultLogFilePath = filepath.Join(home, ".syftbackup", "logs", "syftbackup.log")
)

const (
	DefaultPrefix    = "syftbackup"
	DefaultDiffer    = differ.KindRdiff
	DefaultRdiffPath = "rdiff"
)

var ErrInvalidConfig = errors.New("invalid config")

// Duration is a time.Duration written as a Go duration string ("720h").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Source          string   `json:"source"`
	Target          string   `json:"target"`
	Prefix          string   `json:"prefix"`
	TimeSeparator   string   `json:"time_separator"`
	ShortNames      bool     `json:"short_names"`
	Differ          string   `json:"differ"`
	RdiffPath       string   `json:"rdiff_path"`
	Excludes        []string `json:"excludes,omitempty"`
	FullIfOlderThan Duration `json:"full_if_older_than,omitempty"`
	Path            string   `json:"-"`
}

// Default returns a config with every optional field set.
func Default() *Config {
	return &Config{
		Prefix:        DefaultPrefix,
		TimeSeparator: generation.DefaultTimeSeparator,
		Differ:        DefaultDiffer,
		RdiffPath:     DefaultRdiffPath,
		Path:          DefaultConfigPath,
	}
}

// Naming returns the generation naming settings.
func (c *Config) Naming() generation.NamingConfig {
	return generation.NamingConfig{TimeSeparator: c.TimeSeparator, ShortNames: c.ShortNames}
}

// Validate fills defaults, resolves paths and rejects unusable settings.
func (c *Config) Validate() error {
	var err error

	if c.Source == "" {
		return fmt.Errorf("%w: source folder is required", ErrInvalidConfig)
	}
	if c.Target == "" {
		return fmt.Errorf("%w: target folder is required", ErrInvalidConfig)
	}
	if c.Source, err = utils.ResolvePath(c.Source); err != nil {
		return fmt.Errorf("%w: source: %w", ErrInvalidConfig, err)
	}
	if c.Target, err = utils.ResolvePath(c.Target); err != nil {
		return fmt.Errorf("%w: target: %w", ErrInvalidConfig, err)
	}
	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("%w: config path: %w", ErrInvalidConfig, err)
		}
	}
	if rel, err := filepath.Rel(c.Source, c.Target); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: target %s is inside source %s", ErrInvalidConfig, c.Target, c.Source)
	}

	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if strings.HasPrefix(c.Prefix, ".") || strings.ContainsAny(c.Prefix, `/\`) {
		return fmt.Errorf("%w: prefix %q must not start with a dot or contain path separators", ErrInvalidConfig, c.Prefix)
	}

	if c.TimeSeparator == "" {
		c.TimeSeparator = generation.DefaultTimeSeparator
	}
	if err := c.Naming().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Differ == "" {
		c.Differ = DefaultDiffer
	}
	if _, err := differ.New(c.Differ, c.RdiffPath); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RdiffPath == "" {
		c.RdiffPath = DefaultRdiffPath
	}

	if c.FullIfOlderThan < 0 {
		return fmt.Errorf("%w: full_if_older_than must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Save writes the config to c.Path.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config path is not set")
	}
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.Path, data, 0o644)
}

// LoadFromFile reads a config written by Save. The result is not validated.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}
