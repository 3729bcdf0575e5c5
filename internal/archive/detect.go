package archive

import (
	"bytes"
	"strings"
)

// SniffSize is the number of leading bytes Detect needs to recognize every
// supported format.
const SniffSize = 512

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
	bzip2Magic    = []byte("BZh")
	tarMagic      = []byte("ustar")
)

// Detect identifies a container format from its leading bytes.
func Detect(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, zipMagic), bytes.HasPrefix(header, zipEmptyMagic):
		return Zip
	case bytes.HasPrefix(header, gzipMagic):
		return GZip
	case len(header) >= 4 && bytes.HasPrefix(header, bzip2Magic) && header[3] >= '1' && header[3] <= '9':
		return BZip2
	case len(header) >= 262 && bytes.Equal(header[257:262], tarMagic):
		return Tar
	}
	return None
}

var nameSuffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", GZip},
	{".tgz", GZip},
	{".tar.bz2", BZip2},
	{".tbz2", BZip2},
	{".tbz", BZip2},
	{".zip", Zip},
	{".gz", GZip},
	{".bz2", BZip2},
	{".tar", Tar},
}

// FormatForName guesses the container format from a file name.
func FormatForName(name string) Format {
	lower := strings.ToLower(name)
	for _, entry := range nameSuffixes {
		if strings.HasSuffix(lower, entry.suffix) {
			return entry.format
		}
	}
	return None
}

// stripCompressionSuffix derives the payload name of a single-member
// compressed file, e.g. "game.bin.gz" -> "game.bin" and "a.tgz" -> "a.tar".
func stripCompressionSuffix(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tgz"), strings.HasSuffix(lower, ".tbz"):
		return name[:len(name)-4] + ".tar"
	case strings.HasSuffix(lower, ".tbz2"):
		return name[:len(name)-5] + ".tar"
	case strings.HasSuffix(lower, ".gz"):
		return name[:len(name)-3]
	case strings.HasSuffix(lower, ".bz2"):
		return name[:len(name)-4]
	case strings.HasSuffix(lower, ".gzip"):
		return name[:len(name)-5]
	}
	return name
}
