package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"romlib/internal/fileutil"
	"romlib/internal/location"
	"romlib/internal/logging"
	"romlib/internal/program"
)

// Result is the outcome of a canonicalization.
type Result struct {
	Image *program.Image
	// Source is the image handed to the converter: the input itself or its
	// private copy.
	Source *program.Image
	// LocalCopy is the private directory holding the copied source and the
	// output, or empty when the conversion ran in place.
	LocalCopy string
	// Temporary is set when the caller owns Image and must call Cleanup.
	Temporary bool
}

// Cleanup removes the private directory of a temporary result.
func (r Result) Cleanup() error {
	if r.LocalCopy == "" {
		return nil
	}
	if err := os.RemoveAll(r.LocalCopy); err != nil {
		return fmt.Errorf("remove %s: %w", r.LocalCopy, err)
	}
	return nil
}

// Canonicalizer produces canonical containers by running a Converter.
type Canonicalizer struct {
	converter Converter
	workDir   string
	tempRoot  string
	logger    *slog.Logger
	needsCopy func(*program.Image) bool
}

// NewCanonicalizer returns a Canonicalizer that runs converter with workDir
// (the staging root) as its working directory and places private copies
// under tempRoot.
func NewCanonicalizer(converter Converter, workDir, tempRoot string, logger *slog.Logger) *Canonicalizer {
	return &Canonicalizer{
		converter: converter,
		workDir:   workDir,
		tempRoot:  tempRoot,
		logger:    logging.NewComponentLogger(logger, "canonicalizer"),
		needsCopy: NeedsLocalCopy,
	}
}

// TempRoot returns the directory private copies are created under.
func (c *Canonicalizer) TempRoot() string { return c.tempRoot }

// Canonicalize converts img to the canonical encoding. Canonical input is
// returned unchanged. When temporary is set, or the source cannot be
// converted in place, the source and its companion (renamed to
// <base>.cfg) are copied into a fresh directory first and the result is
// temporary. An existing canonical file at the output path is replaced.
func (c *Canonicalizer) Canonicalize(ctx context.Context, img *program.Image, temporary bool) (Result, error) {
	if !img.Valid() {
		return Result{}, errors.New("canonicalize: invalid image")
	}
	if img.Format == program.CanonicalContainer {
		return Result{Image: img, Source: img}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	logger := logging.WithContext(ctx, c.logger)
	source := img
	result := Result{}
	if temporary || c.needsCopy(img) {
		dir, copied, err := c.localCopy(img)
		if err != nil {
			return Result{}, err
		}
		source = copied
		result.LocalCopy = dir
		result.Temporary = true
	}

	output := source.Primary.WithExt(program.CanonicalContainer.Extension())
	if err := os.Remove(output.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		result.Cleanup()
		return Result{}, fmt.Errorf("remove stale output %s: %w", output.Path, err)
	}

	code, err := c.converter.Convert(ctx, source.Format, source.Primary.Path, c.workDir)
	if err == nil && code == 0 {
		if info, statErr := os.Stat(output.Path); statErr != nil || !info.Mode().IsRegular() {
			err = ErrNoOutput
		}
	}
	if err != nil || code != 0 {
		result.Cleanup()
		convErr := &ConversionError{Path: img.Primary.String(), ExitCode: code, Err: err}
		logging.WarnWithContext(logger, "conversion failed", "conversion_failed",
			logging.String(logging.FieldPath, img.Primary.String()),
			logging.Int(logging.FieldExitCode, code),
			logging.Error(convErr),
			logging.String(logging.FieldErrorHint, "run the converter manually on the file to see its diagnostics"),
			logging.String(logging.FieldImpact, "program cannot be compared in canonical form"),
		)
		return Result{}, convErr
	}

	logger.Debug("converted program",
		logging.String(logging.FieldPath, img.Primary.String()),
		logging.String("output", output.Path),
		logging.Bool("temporary", result.Temporary),
	)
	result.Source = source
	result.Image = program.NewImage(program.CanonicalContainer, output, location.Location{}, false)
	return result, nil
}

func (c *Canonicalizer) localCopy(img *program.Image) (string, *program.Image, error) {
	dir := filepath.Join(c.tempRoot, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create local copy dir: %w", err)
	}
	fail := func(err error) (string, *program.Image, error) {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	primaryPath := filepath.Join(dir, img.Primary.Name())
	if err := copyLocation(img.Primary, primaryPath); err != nil {
		return fail(err)
	}
	var companion location.Location
	if img.HasCompanion() {
		companionPath := filepath.Join(dir, img.Primary.Base()+program.CompanionExtension)
		if err := copyLocation(img.Companion, companionPath); err != nil {
			return fail(err)
		}
		companion = location.FromPath(companionPath)
	}
	return dir, program.NewImage(img.Format, location.FromPath(primaryPath), companion, false), nil
}

func copyLocation(src location.Location, dst string) error {
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer rc.Close()
	if _, _, err := fileutil.WriteStream(rc, dst); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}
