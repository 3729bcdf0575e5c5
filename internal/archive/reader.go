package archive

import (
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/gzip"
)

// DefaultMaxGZipEntries bounds how many concatenated gzip members are read.
const DefaultMaxGZipEntries = 16

// ErrUnsupported is returned by Open for formats without a reader.
var ErrUnsupported = errors.New("unsupported archive format")

// Options tunes archive readers.
type Options struct {
	MaxGZipEntries int
	// MaxBuffer bounds how much of a stream is buffered when a zip has to be
	// read without random access.
	MaxBuffer int64
}

func (o Options) withDefaults() Options {
	if o.MaxGZipEntries <= 0 {
		o.MaxGZipEntries = DefaultMaxGZipEntries
	}
	return o
}

// Entry describes one archive member. Size is -1 when the format cannot
// report it without decompressing.
type Entry struct {
	Name string
	Size int64
	Dir  bool
}

// Reader lists and opens archive members.
type Reader interface {
	Format() Format
	Entries() ([]Entry, error)
	Open(name string) (io.ReadCloser, error)
	Close() error
}

// Open returns a Reader over src. GZip and BZip2 sources that wrap a single
// tar stream are exposed as Tar readers so a .tar.gz lists its tar members.
// The Reader takes ownership of src.
func Open(format Format, src Source, opts Options) (Reader, error) {
	opts = opts.withDefaults()
	switch format {
	case Zip:
		return openZip(src, opts)
	case Tar:
		return &tarReader{src: src, open: src.Open}, nil
	case GZip, BZip2:
		open := func() (io.ReadCloser, error) { return decompress(format, src) }
		isTar, err := wrapsTar(open)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("open %s %s: %w", format, src.Name, err)
		}
		if isTar {
			return &tarReader{src: src, open: open}, nil
		}
		if format == GZip {
			return &gzipReader{src: src, maxEntries: opts.MaxGZipEntries}, nil
		}
		return &bzip2Reader{src: src}, nil
	default:
		src.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}

func decompress(format Format, src Source) (io.ReadCloser, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	switch format {
	case GZip:
		z, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &readCloser{Reader: z, closers: []io.Closer{z, rc}}, nil
	case BZip2:
		return &readCloser{Reader: bzip2.NewReader(rc), closers: []io.Closer{rc}}, nil
	}
	rc.Close()
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
}

func wrapsTar(open func() (io.ReadCloser, error)) (bool, error) {
	rc, err := open()
	if err != nil {
		return false, err
	}
	defer rc.Close()
	header := make([]byte, SniffSize)
	n, err := io.ReadFull(rc, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return Detect(header[:n]) == Tar, nil
}

func notFound(name string) error {
	return fmt.Errorf("archive member %q: %w", name, fs.ErrNotExist)
}

// Sniff reads the leading bytes of src and identifies its container format.
func Sniff(src Source) (Format, error) {
	rc, err := src.Open()
	if err != nil {
		return None, err
	}
	defer rc.Close()
	header := make([]byte, SniffSize)
	n, err := io.ReadFull(rc, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return None, err
	}
	return Detect(header[:n]), nil
}

// OpenDetected opens src using its content to pick the format and falls back
// to the name when the content is not recognized.
func OpenDetected(src Source, opts Options) (Reader, error) {
	format, err := Sniff(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("sniff %s: %w", src.Name, err)
	}
	if format == None {
		format = FormatForName(src.Name)
	}
	if format == None {
		src.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, src.Name)
	}
	return Open(format, src, opts)
}
