package program

import (
	"fmt"
	"hash/crc32"
	"io"

	"romlib/internal/location"
)

// Image is one classified program on disk or inside an archive. Checksums
// are computed on first use and cached until Refresh or Invalidate. An Image
// is not safe for concurrent use.
type Image struct {
	Primary   location.Location
	Companion location.Location
	// StockCompanion is set when Companion is a shared descriptor from the
	// stock directory rather than a file next to Primary.
	StockCompanion bool
	Format         Format

	valid        bool
	fresh        bool
	primaryCRC   uint32
	companionCRC uint32
}

// NewImage returns a valid image. companion may be the zero Location.
func NewImage(format Format, primary, companion location.Location, stock bool) *Image {
	return &Image{
		Primary:        primary,
		Companion:      companion,
		StockCompanion: stock && !companion.IsZero(),
		Format:         format,
		valid:          true,
	}
}

// Valid reports whether the image was successfully classified.
func (img *Image) Valid() bool {
	return img != nil && img.valid && !img.Primary.IsZero()
}

// HasCompanion reports whether a descriptor file accompanies the image.
func (img *Image) HasCompanion() bool {
	return !img.Companion.IsZero()
}

// Name is the display name of the image.
func (img *Image) Name() string {
	return img.Primary.Name()
}

func (img *Image) String() string {
	if img.HasCompanion() {
		return fmt.Sprintf("%s (%s) + %s", img.Primary, img.Format, img.Companion)
	}
	return fmt.Sprintf("%s (%s)", img.Primary, img.Format)
}

// PrimaryChecksum returns the CRC32 of the primary content.
func (img *Image) PrimaryChecksum() (uint32, error) {
	primary, _, err := img.Checksums()
	return primary, err
}

// CompanionChecksum returns the CRC32 of the companion, or 0 without one.
func (img *Image) CompanionChecksum() (uint32, error) {
	_, companion, err := img.Checksums()
	return companion, err
}

// Checksums returns both checksums, computing them if stale.
func (img *Image) Checksums() (primary, companion uint32, err error) {
	if img.fresh {
		return img.primaryCRC, img.companionCRC, nil
	}
	primary, err = Checksum(img.Primary)
	if err != nil {
		return 0, 0, err
	}
	if img.HasCompanion() {
		if companion, err = Checksum(img.Companion); err != nil {
			return 0, 0, err
		}
	}
	img.primaryCRC, img.companionCRC, img.fresh = primary, companion, true
	return primary, companion, nil
}

// Invalidate marks the cached checksums stale.
func (img *Image) Invalidate() {
	img.fresh = false
}

// Refresh recomputes both checksums from the current content.
func (img *Image) Refresh() error {
	img.Invalidate()
	_, _, err := img.Checksums()
	return err
}

// seedPrimary records a primary checksum computed during classification.
func (img *Image) seedPrimary(crc uint32) {
	if img.HasCompanion() {
		return
	}
	img.primaryCRC, img.companionCRC, img.fresh = crc, 0, true
}

// Header reads the canonical header of a canonical image.
func (img *Image) Header() (Header, error) {
	if img.Format != CanonicalContainer {
		return Header{}, fmt.Errorf("%s is %s, not canonical", img.Primary, img.Format)
	}
	return ReadHeader(img.Primary)
}

// Checksum returns the CRC32 (IEEE) of the content at loc.
func Checksum(loc location.Location) (uint32, error) {
	rc, err := loc.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, rc); err != nil {
		return 0, fmt.Errorf("checksum %s: %w", loc, err)
	}
	return h.Sum32(), nil
}
