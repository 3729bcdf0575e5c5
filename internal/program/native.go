package program

// Native container layout: a three byte preamble (tag, segment count, and
// the count's complement), then per segment a start and end page byte, the
// segment words (256 per page, two bytes each) and a CRC-16, then the
// attribute table.
const (
	nativeTagA8            = 0xA8
	nativeTag41            = 0x41
	nativePreambleSize     = 3
	nativeSegmentCRCSize   = 2
	nativeAttributeSize    = 50
	nativeWordsPerPage     = 256
	nativeBytesPerWord     = 2
	nativeSegmentAddrBytes = 2
)

// NativeLayout describes a structurally valid native container.
type NativeLayout struct {
	Segments int
	// DataEnd is the offset just past the attribute table.
	DataEnd int
}

// ParseNativeLayout checks that data is a native container whose segment
// table fits the file. Trailing bytes after the attribute table are allowed.
func ParseNativeLayout(data []byte) (NativeLayout, bool) {
	if len(data) < nativePreambleSize {
		return NativeLayout{}, false
	}
	if data[0] != nativeTagA8 && data[0] != nativeTag41 {
		return NativeLayout{}, false
	}
	count := int(data[1])
	if count == 0 || data[2] != data[1]^0xFF {
		return NativeLayout{}, false
	}
	offset := nativePreambleSize
	for range count {
		if offset+nativeSegmentAddrBytes > len(data) {
			return NativeLayout{}, false
		}
		start, end := int(data[offset]), int(data[offset+1])
		if end < start {
			return NativeLayout{}, false
		}
		offset += nativeSegmentAddrBytes
		offset += (end - start + 1) * nativeWordsPerPage * nativeBytesPerWord
		offset += nativeSegmentCRCSize
		if offset > len(data) {
			return NativeLayout{}, false
		}
	}
	offset += nativeAttributeSize
	if offset > len(data) {
		return NativeLayout{}, false
	}
	return NativeLayout{Segments: count, DataEnd: offset}, true
}
