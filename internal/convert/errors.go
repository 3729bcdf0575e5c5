package convert

import (
	"errors"
	"fmt"
)

var (
	// ErrConversion matches every ConversionError.
	ErrConversion = errors.New("conversion failed")
	// ErrNoOutput reports a converter that exited cleanly without writing
	// the expected file.
	ErrNoOutput = errors.New("converter produced no output")
)

// ConversionError carries the converter's exit code and the offending path.
// ExitCode is -1 when the tool could not be run at all.
type ConversionError struct {
	Path     string
	ExitCode int
	Err      error
}

func (e *ConversionError) Error() string {
	switch {
	case e.Err != nil && e.ExitCode != 0:
		return fmt.Sprintf("convert %s: exit code %d: %v", e.Path, e.ExitCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("convert %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("convert %s: exit code %d", e.Path, e.ExitCode)
	}
}

func (e *ConversionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConversion}
	}
	return []error{ErrConversion, e.Err}
}
