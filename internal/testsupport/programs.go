package testsupport

import (
	"romlib/internal/program"
)

// RawBinary returns an even-length payload of size bytes derived from seed.
func RawBinary(size int, seed byte) []byte {
	if size%2 != 0 {
		size++
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = seed + byte(i*7)
	}
	return data
}

// NativeContainer returns a structurally valid .rom image with one segment
// of pages 256-word pages filled from seed.
func NativeContainer(pages int, seed byte) []byte {
	if pages < 1 {
		pages = 1
	}
	data := []byte{0xA8, 0x01, 0xFE, 0x50, byte(0x50 + pages - 1)}
	data = append(data, RawBinary(pages*256*2, seed)...)
	data = append(data, 0x00, 0x00)
	data = append(data, make([]byte, 50)...)
	return data
}

// Canonical returns a canonical container with header followed by payload.
func Canonical(header program.Header, payload []byte) []byte {
	out := header.Encode()
	return append(out, payload...)
}
