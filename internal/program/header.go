package program

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"romlib/internal/location"
)

// Canonical container header layout.
const (
	HeaderSize = 32

	offsetVersion   = 3
	offsetFlags     = 4
	offsetExtended  = 12
	offsetUID       = 20
	offsetOrigin    = 28
	offsetHeaderCRC = 31

	// CurrentVersion is written by Encode when Version is zero.
	CurrentVersion = 1
)

var canonicalMagic = [3]byte{'L', 'T', 'O'}

// ErrBadHeader marks data that is not a canonical container header.
var ErrBadHeader = errors.New("invalid canonical header")

// Header is the fixed prefix of a canonical container. UID records the
// checksums of the image it was converted from: primary CRC in the low 32
// bits and companion CRC in the high 32 bits.
type Header struct {
	Version  uint8
	Features Features
	UID      uint64
	Origin   Format
}

// NewUID packs origin checksums into a header UID.
func NewUID(primary, companion uint32) uint64 {
	return uint64(companion)<<32 | uint64(primary)
}

// OriginChecksums unpacks UID.
func (h Header) OriginChecksums() (primary, companion uint32) {
	return uint32(h.UID), uint32(h.UID >> 32)
}

// Matches reports whether the header was produced from an image with the
// given format and checksums.
func (h Header) Matches(origin Format, primary, companion uint32) bool {
	p, c := h.OriginChecksums()
	return h.Origin == origin && p == primary && c == companion
}

// Encode renders the header with a valid CRC-8.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf, canonicalMagic[:])
	version := h.Version
	if version == 0 {
		version = CurrentVersion
	}
	buf[offsetVersion] = version
	binary.LittleEndian.PutUint64(buf[offsetFlags:], h.Features.Flags)
	binary.LittleEndian.PutUint64(buf[offsetExtended:], h.Features.Extended)
	binary.LittleEndian.PutUint64(buf[offsetUID:], h.UID)
	buf[offsetOrigin] = byte(h.Origin)
	buf[offsetHeaderCRC] = crc8(buf[:offsetHeaderCRC])
	return buf
}

// ParseHeader decodes and validates a canonical header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(data))
	}
	if [3]byte(data[:3]) != canonicalMagic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrBadHeader)
	}
	if data[offsetVersion] == 0 {
		return Header{}, fmt.Errorf("%w: version 0", ErrBadHeader)
	}
	if got, want := data[offsetHeaderCRC], crc8(data[:offsetHeaderCRC]); got != want {
		return Header{}, fmt.Errorf("%w: crc 0x%02x, want 0x%02x", ErrBadHeader, got, want)
	}
	return Header{
		Version: data[offsetVersion],
		Features: Features{
			Flags:    binary.LittleEndian.Uint64(data[offsetFlags:]),
			Extended: binary.LittleEndian.Uint64(data[offsetExtended:]),
		},
		UID:    binary.LittleEndian.Uint64(data[offsetUID:]),
		Origin: Format(data[offsetOrigin]),
	}, nil
}

// ReadHeader parses the canonical header at loc.
func ReadHeader(loc location.Location) (Header, error) {
	rc, err := loc.Open()
	if err != nil {
		return Header{}, err
	}
	defer rc.Close()
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(rc, buf); err != nil {
		return Header{}, fmt.Errorf("read header %s: %w", loc, err)
	}
	return ParseHeader(buf)
}

// CanonicalChecksum returns the CRC32 of a canonical container with the
// origin UID, originating format and header CRC zeroed and the ignored
// feature bits cleared, so independently converted copies of one program
// compare equal.
func CanonicalChecksum(loc location.Location, ignored Features) (uint32, error) {
	rc, err := loc.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	head := make([]byte, HeaderSize)
	if _, err := io.ReadFull(rc, head); err != nil {
		return 0, fmt.Errorf("read header %s: %w", loc, err)
	}
	header, err := ParseHeader(head)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", loc, err)
	}

	features := header.Features.Mask(ignored)
	binary.LittleEndian.PutUint64(head[offsetFlags:], features.Flags)
	binary.LittleEndian.PutUint64(head[offsetExtended:], features.Extended)
	clear(head[offsetUID : offsetOrigin+1])
	head[offsetHeaderCRC] = 0

	h := crc32.NewIEEE()
	h.Write(head)
	if _, err := io.Copy(h, rc); err != nil {
		return 0, fmt.Errorf("checksum %s: %w", loc, err)
	}
	return h.Sum32(), nil
}

// crc8 is CRC-8/SMBUS (poly 0x07, init 0).
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for range 8 {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
