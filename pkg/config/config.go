// Package config loads back-end settings from a TOML file
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/compiler"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/logger"
)

const FileName = "jmmc.toml"

// Config mirrors jmmc.toml
type Config struct {
	// Registers: a positive budget, 0 for the minimum, -1 to skip allocation
	Registers     int  `toml:"registers"`
	Workers       int  `toml:"workers"`
	ReportMinimum bool `toml:"report_minimum"`
	Verify        bool `toml:"verify"`
	Log           Log  `toml:"log"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

func Default() *Config {
	return &Config{
		Registers: 0,
		Log:       Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML into cfg, leaving keys the document omits untouched
func Parse(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Registers < compiler.Unallocated {
		return fmt.Errorf("registers must be -1, 0 or positive, got %d", c.Registers)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Options converts the settings into compiler options
func (c *Config) Options() compiler.Options {
	return compiler.Options{
		Registers:     c.Registers,
		Workers:       c.Workers,
		ReportMinimum: c.ReportMinimum,
		Verify:        c.Verify,
	}
}

// Logger converts the [log] table into a logger configuration
func (c *Config) Logger() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level, _ = logger.ParseLevel(c.Log.Level)
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	lc.LogFile = c.Log.File
	return lc
}

// Marshal renders the configuration as TOML
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
