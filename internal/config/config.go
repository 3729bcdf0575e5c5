package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories romlib reads from and writes to.
type Paths struct {
	StagingDir  string `toml:"staging_dir"`
	TempDir     string `toml:"temp_dir"`
	LogDir      string `toml:"log_dir"`
	CatalogPath string `toml:"catalog_path"`
}

// Discovery controls which files and archives the walker considers.
type Discovery struct {
	ProgramExtensions    []string `toml:"program_extensions"`
	MaxProgramSizeKiB    int      `toml:"max_program_size_kib"`
	ArchiveFormats       []string `toml:"archive_formats"`
	OnlyAvailableFormats bool     `toml:"only_available_formats"`
	NestedArchives       bool     `toml:"nested_archives"`
	MaxArchiveSizeMiB    int      `toml:"max_archive_size_mib"`
	MaxGZipEntries       int      `toml:"max_gzip_entries"`
}

// Converter names the external tools that produce canonical (.luigi) images.
type Converter struct {
	BinTool string `toml:"bin_tool"`
	RomTool string `toml:"rom_tool"`
}

// Comparison contains defaults for program equivalence checks.
type Comparison struct {
	Mode string `toml:"mode"`
	// IgnoredFeatures and IgnoredFeaturesExt are cleared from both feature
	// groups before canonical checksums are computed in non-strict modes.
	IgnoredFeatures    uint64 `toml:"ignored_features"`
	IgnoredFeaturesExt uint64 `toml:"ignored_features_ext"`
}

// StockConfigs describes shared .cfg descriptors used when a raw binary has
// no co-located companion. ByCRC maps a hex CRC32 of the binary to a file
// name inside Dir.
type StockConfigs struct {
	Dir   string            `toml:"dir"`
	ByCRC map[string]string `toml:"by_crc"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for romlib.
//
// Configuration sections by subsystem:
//   - Paths: staging cache, temporary area, logs, catalog database
//   - Discovery: program extensions, size caps, archive traversal
//   - Converter: external canonicalization tools
//   - Comparison: default comparison mode and ignored feature bits
//   - StockConfigs: shared companion descriptors keyed by checksum
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Discovery    Discovery    `toml:"discovery"`
	Converter    Converter    `toml:"converter"`
	Comparison   Comparison   `toml:"comparison"`
	StockConfigs StockConfigs `toml:"stock_configs"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/romlib/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("romlib.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the staging, temporary, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.TempDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.CatalogPath); strings.TrimSpace(c.Paths.CatalogPath) != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create catalog directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxProgramSize returns the discovery size cap in bytes.
func (c *Config) MaxProgramSize() int64 {
	return int64(c.Discovery.MaxProgramSizeKiB) * 1024
}

// MaxArchiveSize returns the archive size cap in bytes.
func (c *Config) MaxArchiveSize() int64 {
	return int64(c.Discovery.MaxArchiveSizeMiB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultTempDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "romlib", "tmp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/romlib/tmp"
	}
	return filepath.Join(home, ".cache", "romlib", "tmp")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
