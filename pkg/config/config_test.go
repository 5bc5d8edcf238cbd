// Package config - Tests for settings loading
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/compiler"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/logger"
)

func TestParse(t *testing.T) {
	src := `
registers = 4
workers = 2
report_minimum = true

[log]
level = "debug"
format = "json"
`
	cfg := Default()
	if err := Parse([]byte(src), cfg); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := compiler.Options{Registers: 4, Workers: 2, ReportMinimum: true}
	if got := cfg.Options(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	lc := cfg.Logger()
	if lc.Level != logger.LevelDebug || lc.Format != "json" {
		t.Errorf("expected debug json logging, got level %d format %s", lc.Level, lc.Format)
	}
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg := Default()
	if err := Parse([]byte("workers = 3\n"), cfg); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Registers != 0 || cfg.Log.Level != "info" || cfg.Workers != 3 {
		t.Errorf("expected defaults around workers=3, got %+v", cfg)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", "registers = = 1", "failed to parse"},
		{"registers", "registers = -2", "registers"},
		{"workers", "workers = -1", "workers"},
		{"level", "[log]\nlevel = \"loud\"", "log level"},
		{"format", "[log]\nformat = \"xml\"", "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse([]byte(tt.src), Default())
			if err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "absent.toml"))
	if err != nil {
		t.Fatalf("Load of a missing file failed: %v", err)
	}
	if cfg.Registers != Default().Registers {
		t.Errorf("expected defaults for a missing file, got %+v", cfg)
	}

	written := Default()
	written.Registers = compiler.Unallocated
	written.Verify = true
	data, err := written.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *cfg != *written {
		t.Errorf("expected %+v after a round trip, got %+v", written, cfg)
	}
}
