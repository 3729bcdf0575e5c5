package preflight

import (
	"path/filepath"

	"romlib/internal/compare"
	"romlib/internal/config"
	"romlib/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll checks every directory romlib writes to.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Temporary directory", cfg.Paths.TempDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.CatalogPath != "" {
		results = append(results, CheckDirectoryAccess("Catalog directory", filepath.Dir(cfg.Paths.CatalogPath)))
	}
	if cfg.StockConfigs.Dir != "" && len(cfg.StockConfigs.ByCRC) > 0 {
		results = append(results, CheckDirectoryReadable("Stock configs", cfg.StockConfigs.Dir))
	}
	return results
}

// CheckSystemDeps reports the converter tools. They are optional unless the
// configured comparison mode converts programs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	optional := true
	if mode, err := compare.ParseMode(cfg.Comparison.Mode); err == nil && mode.NeedsSession() {
		optional = false
	}
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "Binary converter",
			Command:     cfg.Converter.BinTool,
			Description: "Converts raw binaries to the canonical container",
			Optional:    optional,
		},
		{
			Name:        "ROM converter",
			Command:     cfg.Converter.RomTool,
			Description: "Converts native containers to the canonical container",
			Optional:    optional,
		},
	})
}
