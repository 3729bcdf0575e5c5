package archive

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

type zipReader struct {
	src Source
	zr  *zip.Reader
}

func openZip(src Source, opts Options) (Reader, error) {
	if src.ReaderAt == nil {
		rc, err := src.Open()
		if err != nil {
			return nil, err
		}
		buffered, err := ReadSource(src.Name, rc, opts.MaxBuffer)
		rc.Close()
		if err != nil {
			src.Close()
			return nil, err
		}
		src.Close()
		src = buffered
	}
	zr, err := zip.NewReader(src.ReaderAt, src.Size)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("open zip %s: %w", src.Name, err)
	}
	return &zipReader{src: src, zr: zr}, nil
}

func (r *zipReader) Format() Format { return Zip }

func (r *zipReader) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		entries = append(entries, Entry{
			Name: cleanMemberName(f.Name),
			Size: int64(f.UncompressedSize64),
			Dir:  f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/"),
		})
	}
	return entries, nil
}

func (r *zipReader) Open(name string) (io.ReadCloser, error) {
	for _, f := range r.zr.File {
		if cleanMemberName(f.Name) == name && !f.FileInfo().IsDir() {
			return f.Open()
		}
	}
	return nil, notFound(name)
}

func (r *zipReader) Close() error { return r.src.Close() }

func cleanMemberName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	cleaned := path.Clean("/" + name)
	return strings.TrimPrefix(cleaned, "/")
}
