package testsupport

import (
	"context"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"

	"romlib/internal/program"
)

// FakeConverter writes a canonical container next to its input. The payload
// is the primary content followed by the whitespace-normalized companion, so
// descriptors that differ only in formatting convert to the same program.
type FakeConverter struct {
	// ExitCode is returned instead of converting when non-zero.
	ExitCode int
	// SkipOutput exits cleanly without writing the output file.
	SkipOutput bool
	// Features is written into every produced header.
	Features program.Features
	// Calls records each converted source path.
	Calls []string
	// WorkDirs records the working directory of each call.
	WorkDirs []string
}

func (f *FakeConverter) Convert(ctx context.Context, format program.Format, source, workDir string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	f.Calls = append(f.Calls, source)
	f.WorkDirs = append(f.WorkDirs, workDir)
	if f.ExitCode != 0 {
		return f.ExitCode, nil
	}
	if f.SkipOutput {
		return 0, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return 1, nil
	}
	base := strings.TrimSuffix(source, filepath.Ext(source))
	var companionCRC uint32
	payload := append([]byte(nil), data...)
	if cfg, err := os.ReadFile(base + program.CompanionExtension); err == nil {
		companionCRC = crc32.ChecksumIEEE(cfg)
		payload = append(payload, []byte(strings.Join(strings.Fields(string(cfg)), " "))...)
	}

	header := program.Header{
		Features: f.Features,
		UID:      program.NewUID(crc32.ChecksumIEEE(data), companionCRC),
		Origin:   format,
	}
	if err := os.WriteFile(base+program.CanonicalContainer.Extension(), Canonical(header, payload), 0o644); err != nil {
		return 1, nil
	}
	return 0, nil
}
