package stagecache

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/zeebo/blake3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// dirHashLen is the number of hex characters kept from the directory hash.
const dirHashLen = 16

// HashDir returns the staging subdirectory name for a containing directory.
func HashDir(dir string) string {
	sum := blake3.Sum256([]byte(dir))
	return hex.EncodeToString(sum[:])[:dirHashLen]
}

var nameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"!", "-",
)

// normalizeBase folds accents, strips characters that are unsafe in file
// names and trims separators. It never returns an empty string.
func normalizeBase(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		folded = value
	}
	folded = nameReplacer.Replace(strings.TrimSpace(folded))
	folded = strings.Trim(folded, "-_. ")
	if folded == "" {
		return "program"
	}
	return folded
}

// stagedBase maps a source file name to the base of its staged files. Names
// that normalization alters get a hash of the original name appended, so two
// sources in one directory never share a staged base.
func stagedBase(name string) string {
	base := normalizeBase(name)
	if base == name {
		return base
	}
	sum := blake3.Sum256([]byte(name))
	return base + "~" + hex.EncodeToString(sum[:4])
}
