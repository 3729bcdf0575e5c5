package config

const (
	defaultStagingDir           = "~/.local/share/romlib/staging"
	defaultLogDir               = "~/.local/share/romlib/logs"
	defaultCatalogPath          = "~/.local/share/romlib/catalog.db"
	defaultStockConfigDir       = "~/.config/romlib/stock"
	defaultMaxProgramSizeKiB    = 4096
	defaultMaxArchiveSizeMiB    = 32
	defaultMaxGZipEntries       = 16
	defaultBinTool              = "bin2luigi"
	defaultRomTool              = "rom2luigi"
	defaultComparisonMode       = "canonical"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultIgnoredFeatures      = 0x0000_0000_0000_0400
	defaultIgnoredFeaturesExt   = 0
	defaultOnlyAvailableFormats = true
	defaultNestedArchives       = true
)

var defaultProgramExtensions = []string{".bin", ".int", ".itv", ".rom", ".cc3", ".luigi"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:  defaultStagingDir,
			TempDir:     defaultTempDir(),
			LogDir:      defaultLogDir,
			CatalogPath: defaultCatalogPath,
		},
		Discovery: Discovery{
			ProgramExtensions:    append([]string(nil), defaultProgramExtensions...),
			MaxProgramSizeKiB:    defaultMaxProgramSizeKiB,
			ArchiveFormats:       []string{"all"},
			OnlyAvailableFormats: defaultOnlyAvailableFormats,
			NestedArchives:       defaultNestedArchives,
			MaxArchiveSizeMiB:    defaultMaxArchiveSizeMiB,
			MaxGZipEntries:       defaultMaxGZipEntries,
		},
		Converter: Converter{
			BinTool: defaultBinTool,
			RomTool: defaultRomTool,
		},
		Comparison: Comparison{
			Mode:               defaultComparisonMode,
			IgnoredFeatures:    defaultIgnoredFeatures,
			IgnoredFeaturesExt: defaultIgnoredFeaturesExt,
		},
		StockConfigs: StockConfigs{
			Dir: defaultStockConfigDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
