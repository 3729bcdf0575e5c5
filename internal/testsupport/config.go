package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"romlib/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "catalog.db")
	cfgVal.StockConfigs.Dir = filepath.Join(base, "stock")
	cfgVal.StockConfigs.ByCRC = map[string]string{}

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithComparisonMode sets the default comparison mode.
func WithComparisonMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Comparison.Mode = mode
	}
}

// WithArchiveFormats replaces the enabled archive format names.
func WithArchiveFormats(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Discovery.ArchiveFormats = names
	}
}

// WithStubbedConverter writes a shell script used for both converter tools
// and points the config at it. The script receives the source path as $1.
func WithStubbedConverter(body string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "luigi-stub")
		script := []byte("#!/bin/sh\n" + body + "\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub converter: %v", err)
		}
		b.cfg.Converter.BinTool = target
		b.cfg.Converter.RomTool = target
	}
}
