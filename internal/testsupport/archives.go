package testsupport

import (
	"archive/tar"
	"bytes"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Member is a named archive fixture entry.
type Member struct {
	Name string
	Data []byte
}

// ZipBytes builds a zip archive holding members in order.
func ZipBytes(t testing.TB, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", m.Name, err)
		}
		if _, err := w.Write(m.Data); err != nil {
			t.Fatalf("zip write %s: %v", m.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// TarBytes builds a tar archive holding members in order.
func TarBytes(t testing.TB, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		hdr := &tar.Header{
			Name:     m.Name,
			Mode:     0o644,
			Size:     int64(len(m.Data)),
			ModTime:  time.Unix(0, 0),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", m.Name, err)
		}
		if _, err := tw.Write(m.Data); err != nil {
			t.Fatalf("tar write %s: %v", m.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

// GZipBytes concatenates one gzip member per entry. An empty Name leaves the
// header name unset.
func GZipBytes(t testing.TB, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	for _, m := range members {
		zw := gzip.NewWriter(&buf)
		zw.Name = m.Name
		if _, err := zw.Write(m.Data); err != nil {
			t.Fatalf("gzip write %s: %v", m.Name, err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip close %s: %v", m.Name, err)
		}
	}
	return buf.Bytes()
}
