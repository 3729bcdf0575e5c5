package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge reports a member that exceeds the in-memory buffering limit.
var ErrTooLarge = errors.New("archive member exceeds size limit")

// Source is the byte source an archive Reader is built over. Open must return
// a fresh stream positioned at the start on every call; stream formats are
// re-read on demand. ReaderAt is optional and enables random access for zip.
type Source struct {
	Name     string
	Size     int64
	Open     func() (io.ReadCloser, error)
	ReaderAt io.ReaderAt

	closer io.Closer
}

// FileSource opens path as a Source. Close releases the underlying handle.
func FileSource(path string) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return Source{}, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return Source{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Source{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		Open:     func() (io.ReadCloser, error) { return os.Open(path) },
		ReaderAt: file,
		closer:   file,
	}, nil
}

// BytesSource wraps an in-memory payload.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
		ReaderAt: bytes.NewReader(data),
	}
}

// ReadSource buffers r into memory as a Source. It fails with ErrTooLarge when
// more than limit bytes are available; limit <= 0 disables the check.
func ReadSource(name string, r io.Reader, limit int64) (Source, error) {
	var data []byte
	var err error
	if limit > 0 {
		data, err = io.ReadAll(io.LimitReader(r, limit+1))
		if err == nil && int64(len(data)) > limit {
			return Source{}, fmt.Errorf("%s: %w", name, ErrTooLarge)
		}
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return Source{}, fmt.Errorf("buffer %s: %w", name, err)
	}
	return BytesSource(name, data), nil
}

// Close releases any handle held by the source.
func (s Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
