package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"romlib/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "romlib", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	wantTemp := filepath.Join(tempHome, ".cache", "romlib", "tmp")
	if cfg.Paths.TempDir != wantTemp {
		t.Fatalf("unexpected temp dir: got %q want %q", cfg.Paths.TempDir, wantTemp)
	}
	if cfg.Comparison.Mode != "canonical" {
		t.Fatalf("unexpected comparison mode: %q", cfg.Comparison.Mode)
	}
	if cfg.MaxProgramSize() != 4096*1024 {
		t.Fatalf("unexpected program size cap: %d", cfg.MaxProgramSize())
	}
	if len(cfg.Discovery.ArchiveFormats) != 1 || cfg.Discovery.ArchiveFormats[0] != "all" {
		t.Fatalf("unexpected archive formats: %v", cfg.Discovery.ArchiveFormats)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.TempDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "romlib.toml")

	type payload struct {
		Paths struct {
			StagingDir string `toml:"staging_dir"`
		} `toml:"paths"`
		Discovery struct {
			ProgramExtensions []string `toml:"program_extensions"`
			ArchiveFormats    []string `toml:"archive_formats"`
		} `toml:"discovery"`
		Comparison struct {
			Mode string `toml:"mode"`
		} `toml:"comparison"`
		StockConfigs struct {
			ByCRC map[string]string `toml:"by_crc"`
		} `toml:"stock_configs"`
	}
	custom := payload{}
	custom.Paths.StagingDir = filepath.Join(tempDir, "stage")
	custom.Discovery.ProgramExtensions = []string{"BIN", ".rom", "bin", " "}
	custom.Discovery.ArchiveFormats = []string{" Zip ", "TAR"}
	custom.Comparison.Mode = " CRC "
	custom.StockConfigs.ByCRC = map[string]string{"ABCD1234": "0.cfg"}

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Paths.StagingDir != custom.Paths.StagingDir {
		t.Fatalf("unexpected staging dir: %q", cfg.Paths.StagingDir)
	}
	if got := strings.Join(cfg.Discovery.ProgramExtensions, ","); got != ".bin,.rom" {
		t.Fatalf("unexpected program extensions: %q", got)
	}
	if got := strings.Join(cfg.Discovery.ArchiveFormats, ","); got != "zip,tar" {
		t.Fatalf("unexpected archive formats: %q", got)
	}
	if cfg.Comparison.Mode != "crc" {
		t.Fatalf("unexpected comparison mode: %q", cfg.Comparison.Mode)
	}
	table := cfg.StockTable()
	if table[0xabcd1234] != "0.cfg" {
		t.Fatalf("unexpected stock table: %v", table)
	}
}

func TestStagingDirEnvOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "env-stage")
	t.Setenv("ROMLIB_STAGING_DIR", override)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.StagingDir != override {
		t.Fatalf("expected env staging dir %q, got %q", override, cfg.Paths.StagingDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown archive format",
			mutate: func(c *config.Config) { c.Discovery.ArchiveFormats = []string{"rar"} },
			want:   "discovery.archive_formats",
		},
		{
			name:   "unknown mode",
			mutate: func(c *config.Config) { c.Comparison.Mode = "fuzzy" },
			want:   "comparison.mode",
		},
		{
			name:   "non-positive gzip entries",
			mutate: func(c *config.Config) { c.Discovery.MaxGZipEntries = 0 },
			want:   "discovery.max_gzip_entries",
		},
		{
			name: "temp equals staging",
			mutate: func(c *config.Config) {
				c.Paths.StagingDir = "/tmp/same"
				c.Paths.TempDir = "/tmp/same"
			},
			want: "paths.temp_dir",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.TempDir = "/tmp/romlib-temp"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadRejectsBadStockKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "romlib.toml")
	content := "[stock_configs.by_crc]\n\"not-hex\" = \"0.cfg\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for invalid stock checksum key")
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Converter.BinTool != "bin2luigi" || cfg.Converter.RomTool != "rom2luigi" {
		t.Fatalf("unexpected converter tools: %+v", cfg.Converter)
	}
	if cfg.Comparison.IgnoredFeatures != 0x400 {
		t.Fatalf("unexpected ignored features: %#x", cfg.Comparison.IgnoredFeatures)
	}
}
