package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	knownArchiveFormats = map[string]struct{}{
		"all": {}, "zip": {}, "gzip": {}, "tar": {}, "bzip2": {}, "unknown": {},
	}
	knownComparisonModes = map[string]struct{}{
		"crc": {}, "strict": {}, "canonical": {}, "canonical-strict": {},
	}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateComparison(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		return errors.New("paths.temp_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.TempDir {
		return errors.New("paths.temp_dir must differ from paths.staging_dir")
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if err := ensurePositiveMap(map[string]int{
		"discovery.max_program_size_kib": c.Discovery.MaxProgramSizeKiB,
		"discovery.max_archive_size_mib": c.Discovery.MaxArchiveSizeMiB,
		"discovery.max_gzip_entries":     c.Discovery.MaxGZipEntries,
	}); err != nil {
		return err
	}
	for _, name := range c.Discovery.ArchiveFormats {
		if _, ok := knownArchiveFormats[name]; !ok {
			return fmt.Errorf("discovery.archive_formats: unsupported format %q", name)
		}
	}
	return nil
}

func (c *Config) validateComparison() error {
	if _, ok := knownComparisonModes[c.Comparison.Mode]; !ok {
		return fmt.Errorf("comparison.mode: unsupported value %q (use crc, strict, canonical, or canonical-strict)", c.Comparison.Mode)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
