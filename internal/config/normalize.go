package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDiscovery()
	c.normalizeConverter()
	c.normalizeComparison()
	if err := c.normalizeStockConfigs(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("ROMLIB_STAGING_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.StagingDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir()
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath
	}

	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDiscovery() {
	exts := make([]string, 0, len(c.Discovery.ProgramExtensions))
	seen := make(map[string]struct{}, len(c.Discovery.ProgramExtensions))
	for _, ext := range c.Discovery.ProgramExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultProgramExtensions...)
	}
	c.Discovery.ProgramExtensions = exts

	formats := make([]string, 0, len(c.Discovery.ArchiveFormats))
	for _, name := range c.Discovery.ArchiveFormats {
		if normalized := strings.ToLower(strings.TrimSpace(name)); normalized != "" {
			formats = append(formats, normalized)
		}
	}
	c.Discovery.ArchiveFormats = formats

	if c.Discovery.MaxProgramSizeKiB <= 0 {
		c.Discovery.MaxProgramSizeKiB = defaultMaxProgramSizeKiB
	}
	if c.Discovery.MaxArchiveSizeMiB <= 0 {
		c.Discovery.MaxArchiveSizeMiB = defaultMaxArchiveSizeMiB
	}
	if c.Discovery.MaxGZipEntries <= 0 {
		c.Discovery.MaxGZipEntries = defaultMaxGZipEntries
	}
}

func (c *Config) normalizeConverter() {
	c.Converter.BinTool = strings.TrimSpace(c.Converter.BinTool)
	if c.Converter.BinTool == "" {
		c.Converter.BinTool = defaultBinTool
	}
	c.Converter.RomTool = strings.TrimSpace(c.Converter.RomTool)
	if c.Converter.RomTool == "" {
		c.Converter.RomTool = defaultRomTool
	}
}

func (c *Config) normalizeComparison() {
	c.Comparison.Mode = strings.ToLower(strings.TrimSpace(c.Comparison.Mode))
	if c.Comparison.Mode == "" {
		c.Comparison.Mode = defaultComparisonMode
	}
}

func (c *Config) normalizeStockConfigs() error {
	if strings.TrimSpace(c.StockConfigs.Dir) == "" {
		c.StockConfigs.Dir = defaultStockConfigDir
	}
	var err error
	if c.StockConfigs.Dir, err = expandPath(c.StockConfigs.Dir); err != nil {
		return fmt.Errorf("stock_configs.dir: %w", err)
	}
	normalized := make(map[string]string, len(c.StockConfigs.ByCRC))
	for key, name := range c.StockConfigs.ByCRC {
		crc, err := parseCRC(key)
		if err != nil {
			return fmt.Errorf("stock_configs.by_crc: %w", err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		normalized[formatCRC(crc)] = name
	}
	c.StockConfigs.ByCRC = normalized
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// StockTable returns the stock descriptor table keyed by binary CRC32.
func (c *Config) StockTable() map[uint32]string {
	table := make(map[uint32]string, len(c.StockConfigs.ByCRC))
	for key, name := range c.StockConfigs.ByCRC {
		crc, err := parseCRC(key)
		if err != nil {
			continue
		}
		table[crc] = name
	}
	return table
}

func parseCRC(value string) (uint32, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty checksum key")
	}
	parsed, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid checksum key %q: %w", value, err)
	}
	return uint32(parsed), nil
}

func formatCRC(crc uint32) string {
	return fmt.Sprintf("0x%08x", crc)
}
