package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"romlib/internal/logging"
	"romlib/internal/program"
)

// Converter turns the file at source into a canonical container written next
// to it with the .luigi extension. A non-zero exit code is reported, not
// returned as an error; err is reserved for failing to run the tool.
type Converter interface {
	Convert(ctx context.Context, format program.Format, source, workDir string) (exitCode int, err error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, dir string, onOutput func(string)) (int, error)
}

// Option configures the ExecConverter.
type Option func(*ExecConverter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(e Executor) Option {
	return func(c *ExecConverter) {
		if e != nil {
			c.exec = e
		}
	}
}

// ExecConverter runs the external conversion tools.
type ExecConverter struct {
	binTool string
	romTool string
	exec    Executor
	logger  *slog.Logger
}

// NewExecConverter returns a converter using binTool for raw binaries and
// romTool for native containers.
func NewExecConverter(binTool, romTool string, logger *slog.Logger, opts ...Option) (*ExecConverter, error) {
	binTool = strings.TrimSpace(binTool)
	romTool = strings.TrimSpace(romTool)
	if binTool == "" || romTool == "" {
		return nil, errors.New("converter tools required")
	}
	c := &ExecConverter{
		binTool: binTool,
		romTool: romTool,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logger, "converter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Convert runs `<tool> <source>` in workDir.
func (c *ExecConverter) Convert(ctx context.Context, format program.Format, source, workDir string) (int, error) {
	var tool string
	switch format {
	case program.RawBinary:
		tool = c.binTool
	case program.NativeContainer:
		tool = c.romTool
	default:
		return -1, fmt.Errorf("no converter for %s input", format)
	}

	logger := logging.WithContext(ctx, c.logger)
	logger.Debug("running converter",
		logging.String("command", tool),
		logging.String(logging.FieldPath, source),
		logging.String("work_dir", workDir),
	)
	code, err := c.exec.Run(ctx, tool, []string{source}, workDir, func(line string) {
		logger.Debug("converter output", logging.String("line", line))
	})
	if err != nil {
		return -1, fmt.Errorf("run %s: %w", tool, err)
	}
	return code, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, dir string, onOutput func(string)) (int, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}
