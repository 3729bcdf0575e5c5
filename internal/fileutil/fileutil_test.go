package fileutil

import (
	"bytes"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "nested", "dst.bin")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestWriteStreamReturnsChecksum(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.bin")
	content := []byte("program bytes")

	n, crc, err := WriteStream(bytes.NewReader(content), dst)
	if err != nil {
		t.Fatalf("WriteStream: %v", err)
	}
	if n != int64(len(content)) {
		t.Fatalf("written = %d, want %d", n, len(content))
	}
	if crc != crc32.ChecksumIEEE(content) {
		t.Fatalf("crc = 0x%08x, want 0x%08x", crc, crc32.ChecksumIEEE(content))
	}
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the destination file, got %d entries", len(entries))
	}
}

func TestCopyVerifiedRejectsMismatch(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.bin")
	content := []byte("program bytes")

	err := CopyVerified(bytes.NewReader(content), dst, crc32.ChecksumIEEE(content)+1)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Fatalf("expected destination removed after mismatch, stat err=%v", statErr)
	}
}

func TestCopyVerified(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.bin")
	content := []byte("program bytes")

	if err := CopyVerified(bytes.NewReader(content), dst, crc32.ChecksumIEEE(content)); err != nil {
		t.Fatalf("CopyVerified: %v", err)
	}
	crc, err := FileChecksum(dst)
	if err != nil {
		t.Fatal(err)
	}
	if crc != crc32.ChecksumIEEE(content) {
		t.Fatalf("unexpected checksum 0x%08x", crc)
	}
}
