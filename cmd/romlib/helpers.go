package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"romlib/internal/config"
	"romlib/internal/discovery"
	"romlib/internal/location"
	"romlib/internal/logging"
	"romlib/internal/program"
)

// discoverImages walks inputs and classifies every candidate. Unrecognized
// content is skipped; classification failures are logged and skipped.
func discoverImages(cmd *cobra.Command, ctx *commandContext, inputs []string) ([]*program.Image, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	classifier, err := ctx.classifier()
	if err != nil {
		return nil, err
	}
	opts, err := discovery.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Logger = logger

	progress := newProgressLine(cmd.ErrOrStderr(), stdoutIsTerminal(cmd))
	defer progress.done()

	walker := discovery.New(cmd.Context(), expandInputs(inputs), opts)
	defer walker.Close()

	var images []*program.Image
	for loc := range walker.All() {
		progress.update(len(images), loc.String())
		img, err := classifier.Classify(loc)
		if err != nil {
			logging.WarnWithContext(logger, "classification failed; skipping", "classify_failed",
				logging.String(logging.FieldPath, loc.String()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "program excluded from results"),
			)
			continue
		}
		if img == nil {
			continue
		}
		images = append(images, img)
	}
	if err := walker.Err(); err != nil {
		return images, err
	}
	return images, nil
}

// classifyArg resolves a single command-line location (path or
// path!member) to a program image.
func classifyArg(ctx *commandContext, arg string) (*program.Image, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("location is required")
	}
	classifier, err := ctx.classifier()
	if err != nil {
		return nil, err
	}
	opts, err := ctx.archiveOptions()
	if err != nil {
		return nil, err
	}
	loc := location.Parse(arg).WithArchiveOptions(opts)
	if expanded, err := config.ExpandPath(loc.Path); err == nil {
		loc.Path = expanded
	}
	img, err := classifier.Classify(loc)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", loc, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%s is not a recognized program image", loc)
	}
	return img, nil
}

func expandInputs(inputs []string) []string {
	out := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if expanded, err := config.ExpandPath(strings.TrimSpace(input)); err == nil && expanded != "" {
			out = append(out, expanded)
		}
	}
	return out
}

func stdoutIsTerminal(cmd *cobra.Command) bool {
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

type progressLine struct {
	out     io.Writer
	enabled bool
	last    time.Time
	wrote   bool
}

func newProgressLine(out io.Writer, enabled bool) *progressLine {
	return &progressLine{out: out, enabled: enabled}
}

func (p *progressLine) update(found int, current string) {
	if !p.enabled || time.Since(p.last) < 100*time.Millisecond {
		return
	}
	p.last = time.Now()
	if len(current) > 60 {
		current = "..." + current[len(current)-57:]
	}
	fmt.Fprintf(p.out, "\r\033[K%d found  %s", found, current)
	p.wrote = true
}

func (p *progressLine) done() {
	if p.wrote {
		fmt.Fprint(p.out, "\r\033[K")
	}
}

func formatCRC(crc uint32) string {
	return fmt.Sprintf("%08x", crc)
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPEZY"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
