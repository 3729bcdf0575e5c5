package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
)

type tarReader struct {
	src  Source
	open func() (io.ReadCloser, error)
}

func (r *tarReader) Format() Format { return Tar }

func (r *tarReader) Entries() ([]Entry, error) {
	var entries []Entry
	err := r.walk(func(hdr *tar.Header, _ *tar.Reader) bool {
		mode := hdr.FileInfo().Mode()
		if !mode.IsRegular() && !mode.IsDir() {
			return false
		}
		entries = append(entries, Entry{
			Name: cleanMemberName(hdr.Name),
			Size: hdr.Size,
			Dir:  mode.IsDir(),
		})
		return false
	}, nil)
	return entries, err
}

func (r *tarReader) Open(name string) (io.ReadCloser, error) {
	var found io.ReadCloser
	err := r.walk(func(hdr *tar.Header, tr *tar.Reader) bool {
		return hdr.FileInfo().Mode().IsRegular() && cleanMemberName(hdr.Name) == name
	}, func(tr *tar.Reader, rc io.ReadCloser) {
		found = &readCloser{Reader: tr, closers: []io.Closer{rc}}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, notFound(name)
	}
	return found, nil
}

// walk visits headers until match returns true, then hands the positioned
// reader to onMatch, which takes ownership of the stream.
func (r *tarReader) walk(match func(*tar.Header, *tar.Reader) bool, onMatch func(*tar.Reader, io.ReadCloser)) error {
	rc, err := r.open()
	if err != nil {
		return err
	}
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			rc.Close()
			return nil
		}
		if err != nil {
			rc.Close()
			return fmt.Errorf("read tar %s: %w", r.src.Name, err)
		}
		if match(hdr, tr) {
			if onMatch != nil {
				onMatch(tr, rc)
				return nil
			}
			rc.Close()
			return nil
		}
	}
}

func (r *tarReader) Close() error { return r.src.Close() }
