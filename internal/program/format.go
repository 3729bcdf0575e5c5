package program

import (
	"fmt"
	"strings"
)

// Format identifies one of the three program encodings.
type Format uint8

const (
	Unknown Format = iota
	// RawBinary is a headerless ROM dump with an optional .cfg companion.
	RawBinary
	// NativeContainer is the segmented .rom/.cc3 container.
	NativeContainer
	// CanonicalContainer is the .luigi container all deep comparisons use.
	CanonicalContainer
)

var formatNames = [...]string{"unknown", "bin", "rom", "luigi"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ParseFormat maps a name produced by String back to a Format.
func ParseFormat(name string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range formatNames {
		if candidate == normalized {
			return Format(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown program format %q", name)
}

// Extension returns the canonical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case RawBinary:
		return ".bin"
	case NativeContainer:
		return ".rom"
	case CanonicalContainer:
		return ".luigi"
	}
	return ""
}

// CompanionExtension is the extension of raw binary descriptors.
const CompanionExtension = ".cfg"

// FormatForExtension maps a lowercase extension to the format it usually
// carries. Classification never relies on it alone.
func FormatForExtension(ext string) Format {
	switch strings.ToLower(ext) {
	case ".bin", ".int", ".itv":
		return RawBinary
	case ".rom", ".cc3":
		return NativeContainer
	case ".luigi":
		return CanonicalContainer
	}
	return Unknown
}
