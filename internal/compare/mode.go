package compare

import (
	"fmt"
	"strings"
)

// Mode selects a comparison strategy.
type Mode int

const (
	// CRC compares content checksums only. Images in different encodings
	// never match.
	CRC Mode = iota
	// Strict is CRC plus equal declared hardware features.
	Strict
	// Canonical converts both sides to the canonical encoding and compares
	// canonical checksums with the ignored feature bits cleared.
	Canonical
	// CanonicalStrict is Canonical with exact feature equality.
	CanonicalStrict
)

var modeNames = [...]string{"crc", "strict", "canonical", "canonical-strict"}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a config or flag value to a Mode.
func ParseMode(value string) (Mode, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-")
	for i, name := range modeNames {
		if name == normalized {
			return Mode(i), nil
		}
	}
	return CRC, fmt.Errorf("unknown comparison mode %q", value)
}

// NeedsSession reports whether the mode converts images.
func (m Mode) NeedsSession() bool {
	return m == Canonical || m == CanonicalStrict
}
