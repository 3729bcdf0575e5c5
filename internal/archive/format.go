package archive

import (
	"fmt"
	"strings"
)

// Format enumerates the container formats discovery can descend into.
type Format uint8

const (
	None Format = iota
	Zip
	GZip
	Tar
	BZip2
	// Unknown enables content sniffing of files whose extension is not a
	// recognized archive extension.
	Unknown
)

var formatNames = [...]string{"none", "zip", "gzip", "tar", "bzip2", "unknown"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ParseFormat maps a config name to a Format.
func ParseFormat(name string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range formatNames {
		if i == int(None) {
			continue
		}
		if candidate == normalized {
			return Format(i), nil
		}
	}
	return None, fmt.Errorf("unknown archive format %q", name)
}

// Serialized enablement bits.
const (
	BitZip     uint32 = 1 << 0
	BitGZip    uint32 = 1 << 1
	BitTar     uint32 = 1 << 2
	BitBZip2   uint32 = 1 << 3
	BitUnknown uint32 = 1 << 4
	BitAll     uint32 = 1 << 31
)

var formatBits = map[Format]uint32{
	Zip:     BitZip,
	GZip:    BitGZip,
	Tar:     BitTar,
	BZip2:   BitBZip2,
	Unknown: BitUnknown,
}

// FormatSet is a set over the closed Format enumeration.
type FormatSet struct {
	bits uint8
}

// NewFormatSet returns a set containing formats.
func NewFormatSet(formats ...Format) FormatSet {
	var s FormatSet
	for _, f := range formats {
		s.Add(f)
	}
	return s
}

// Add inserts f. None is ignored.
func (s *FormatSet) Add(f Format) {
	if f == None || int(f) >= len(formatNames) {
		return
	}
	s.bits |= 1 << f
}

// Has reports whether f is in the set.
func (s FormatSet) Has(f Format) bool {
	return f != None && s.bits&(1<<f) != 0
}

func (s FormatSet) Intersect(other FormatSet) FormatSet {
	return FormatSet{bits: s.bits & other.bits}
}

func (s FormatSet) Union(other FormatSet) FormatSet {
	return FormatSet{bits: s.bits | other.bits}
}

// Formats returns the members in enumeration order.
func (s FormatSet) Formats() []Format {
	var out []Format
	for f := Zip; f <= Unknown; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FormatSet) String() string {
	names := make([]string, 0, 6)
	for _, f := range s.Formats() {
		names = append(names, f.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Supported lists the formats this package can read. Unknown is a discovery
// policy rather than a codec and is never part of it.
func Supported() FormatSet {
	return NewFormatSet(Zip, GZip, Tar, BZip2)
}

// Available reports the formats readable in this build.
func Available() FormatSet {
	return Supported()
}

// Enablement is the user-facing selection of archive formats.
type Enablement struct {
	All bool
	Set FormatSet
}

// EnablementFromBits decodes the serialized bit representation. Unused bits
// are ignored.
func EnablementFromBits(bits uint32) Enablement {
	e := Enablement{All: bits&BitAll != 0}
	for f, bit := range formatBits {
		if bits&bit != 0 {
			e.Set.Add(f)
		}
	}
	return e
}

// Bits encodes the enablement into its serialized bit representation.
func (e Enablement) Bits() uint32 {
	var bits uint32
	if e.All {
		bits |= BitAll
	}
	for f, bit := range formatBits {
		if e.Set.Has(f) {
			bits |= bit
		}
	}
	return bits
}

// ParseEnablement builds an Enablement from config names such as "zip" or "all".
func ParseEnablement(names []string) (Enablement, error) {
	var e Enablement
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			e.All = true
			continue
		}
		f, err := ParseFormat(name)
		if err != nil {
			return Enablement{}, err
		}
		e.Set.Add(f)
	}
	return e, nil
}

// Resolve returns the concrete set of formats discovery should honour. All
// expands to every supported format; with onlyAvailable the result is limited
// to available. Unknown survives only when selected explicitly.
func (e Enablement) Resolve(onlyAvailable bool, available FormatSet) FormatSet {
	resolved := e.Set
	if e.All {
		resolved = resolved.Union(Supported())
	}
	if onlyAvailable {
		keep := available
		keep.Add(Unknown)
		resolved = resolved.Intersect(keep)
	}
	return resolved
}
