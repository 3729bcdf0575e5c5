package program

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"romlib/internal/location"
	"romlib/internal/logging"
)

// StockConfigs locates shared companion descriptors by primary checksum.
type StockConfigs struct {
	Dir   string
	ByCRC map[uint32]string
}

// Lookup returns the descriptor path for crc if one is configured and exists.
func (s StockConfigs) Lookup(crc uint32) (string, bool) {
	name, ok := s.ByCRC[crc]
	if !ok || s.Dir == "" {
		return "", false
	}
	full := filepath.Join(s.Dir, name)
	if info, err := os.Stat(full); err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return full, true
}

// Classifier recognizes program encodings from content.
type Classifier struct {
	stock  StockConfigs
	logger *slog.Logger
}

// NewClassifier returns a Classifier using stock for raw binary companions.
func NewClassifier(stock StockConfigs, logger *slog.Logger) *Classifier {
	return &Classifier{stock: stock, logger: logging.NewComponentLogger(logger, "classifier")}
}

// Classify inspects the content at loc. It returns nil, nil when the content
// is not a recognized program and an error only when it cannot be read.
func (c *Classifier) Classify(loc location.Location) (*Image, error) {
	rc, err := loc.Open()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}

	format := detectFormat(loc, data)
	if format == Unknown {
		c.logger.Debug("not a program", logging.String(logging.FieldPath, loc.String()))
		return nil, nil
	}

	var img *Image
	if format == RawBinary {
		crc := crc32.ChecksumIEEE(data)
		companion, stock, err := c.FindCompanion(loc, crc)
		if err != nil {
			return nil, err
		}
		img = NewImage(format, loc, companion, stock)
		img.seedPrimary(crc)
	} else {
		img = NewImage(format, loc, location.Location{}, false)
		img.seedPrimary(crc32.ChecksumIEEE(data))
	}
	c.logger.Debug("classified program",
		logging.String(logging.FieldPath, loc.String()),
		logging.String(logging.FieldFormat, format.String()),
		logging.Bool("companion", img.HasCompanion()),
	)
	return img, nil
}

func detectFormat(loc location.Location, data []byte) Format {
	if bytes.HasPrefix(data, canonicalMagic[:]) {
		if _, err := ParseHeader(data); err == nil {
			return CanonicalContainer
		}
		return Unknown
	}
	if _, ok := ParseNativeLayout(data); ok {
		return NativeContainer
	}
	if FormatForExtension(loc.Ext()) == RawBinary && len(data) > 0 && len(data)%2 == 0 {
		return RawBinary
	}
	return Unknown
}

// FindCompanion looks for <base>.cfg next to loc, matching case-insensitively,
// and otherwise for a stock descriptor keyed by primaryCRC. The zero Location
// means no companion.
func (c *Classifier) FindCompanion(loc location.Location, primaryCRC uint32) (location.Location, bool, error) {
	siblings, err := loc.Siblings()
	if err != nil {
		return location.Location{}, false, fmt.Errorf("list siblings of %s: %w", loc, err)
	}
	want := strings.ToLower(loc.Base() + CompanionExtension)
	for _, name := range siblings {
		if strings.ToLower(name) == want {
			return loc.Sibling(name), false, nil
		}
	}
	if stockPath, ok := c.stock.Lookup(primaryCRC); ok {
		return location.FromPath(stockPath), true, nil
	}
	return location.Location{}, false, nil
}
