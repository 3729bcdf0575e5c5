package archive

import (
	"compress/bzip2"
	"fmt"
	"io"
)

// bzip2Reader exposes a bzip2 stream as a single entry named after the
// source with the compression suffix removed.
type bzip2Reader struct {
	src Source
}

func (r *bzip2Reader) Format() Format { return BZip2 }

func (r *bzip2Reader) name() string {
	name := stripCompressionSuffix(r.src.Name)
	if name == "" || name == r.src.Name {
		name = r.src.Name + ".out"
	}
	return name
}

func (r *bzip2Reader) Entries() ([]Entry, error) {
	rc, err := r.src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	n, err := io.Copy(io.Discard, bzip2.NewReader(rc))
	if err != nil {
		return nil, fmt.Errorf("read bzip2 %s: %w", r.src.Name, err)
	}
	return []Entry{{Name: r.name(), Size: n}}, nil
}

func (r *bzip2Reader) Open(name string) (io.ReadCloser, error) {
	if name != r.name() {
		return nil, notFound(name)
	}
	return decompress(BZip2, r.src)
}

func (r *bzip2Reader) Close() error { return r.src.Close() }
