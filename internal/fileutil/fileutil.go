package fileutil

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// CopyFile streams src to dst with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, _, err = WriteStream(in, dst)
	return err
}

// WriteStream copies r into dst through a temporary file in the same
// directory and renames it into place, returning the byte count and CRC32 of
// what was written. dst is left untouched on failure.
func WriteStream(r io.Reader, dst string) (int64, uint32, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return 0, 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	hasher := crc32.NewIEEE()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		return 0, 0, fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return 0, 0, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return 0, 0, fmt.Errorf("rename into place: %w", err)
	}
	return written, hasher.Sum32(), nil
}

// CopyVerified copies r into dst and re-reads dst to confirm its CRC32
// equals want. dst is removed on mismatch.
func CopyVerified(r io.Reader, dst string, want uint32) error {
	_, written, err := WriteStream(r, dst)
	if err != nil {
		return err
	}
	if written != want {
		_ = os.Remove(dst)
		return fmt.Errorf("copy checksum mismatch: source 0x%08x, copied 0x%08x", want, written)
	}
	onDisk, err := FileChecksum(dst)
	if err != nil {
		return err
	}
	if onDisk != want {
		_ = os.Remove(dst)
		return fmt.Errorf("copy checksum mismatch: source 0x%08x, on disk 0x%08x", want, onDisk)
	}
	return nil
}

// FileChecksum returns the CRC32 (IEEE) of a file.
func FileChecksum(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	hasher := crc32.NewIEEE()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, fmt.Errorf("checksum %s: %w", path, err)
	}
	return hasher.Sum32(), nil
}
