package discovery

import (
	"fmt"
	"log/slog"
	"strings"

	"romlib/internal/archive"
	"romlib/internal/config"
)

// Options controls what the Walker yields and which containers it enters.
type Options struct {
	// Extensions filters on-disk files; archive members are not filtered.
	// Entries are lowercase with a leading dot. Empty accepts everything.
	Extensions []string
	// MaxProgramSize caps candidate size in bytes. Zero disables the cap.
	MaxProgramSize int64
	// Formats is the resolved set of archive formats to descend into.
	Formats        archive.FormatSet
	NestedArchives bool
	// MaxArchiveSize caps archives opened at all. Zero disables the cap.
	MaxArchiveSize int64
	MaxGZipEntries int

	// Progress receives the string form of every yielded location.
	Progress func(path string)
	// Cancel is polled before each unit of work. Returning true ends the
	// walk without an error.
	Cancel func() bool
	Logger *slog.Logger
}

// OptionsFromConfig derives walker options from the discovery config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	enablement, err := archive.ParseEnablement(cfg.Discovery.ArchiveFormats)
	if err != nil {
		return Options{}, fmt.Errorf("discovery: %w", err)
	}
	return Options{
		Extensions:     append([]string(nil), cfg.Discovery.ProgramExtensions...),
		MaxProgramSize: cfg.MaxProgramSize(),
		Formats:        enablement.Resolve(cfg.Discovery.OnlyAvailableFormats, archive.Available()),
		NestedArchives: cfg.Discovery.NestedArchives,
		MaxArchiveSize: cfg.MaxArchiveSize(),
		MaxGZipEntries: cfg.Discovery.MaxGZipEntries,
	}, nil
}

// ArchiveOptions returns the archive limits used while walking.
func (o Options) ArchiveOptions() archive.Options {
	return archive.Options{MaxGZipEntries: o.MaxGZipEntries, MaxBuffer: o.MaxArchiveSize}
}

func (o Options) programExtension(name string) bool {
	if len(o.Extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range o.Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (o Options) tooLarge(size int64) bool {
	return o.MaxProgramSize > 0 && size > o.MaxProgramSize
}

func (o Options) archiveTooLarge(size int64) bool {
	return o.MaxArchiveSize > 0 && size > o.MaxArchiveSize
}
