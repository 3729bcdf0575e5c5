// Package location names program content that may live on disk or inside a
// chain of archives.
package location

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"romlib/internal/archive"
)

// Separator joins the on-disk path and archive member names in String.
const Separator = "!"

// Location is an on-disk path plus the archive members leading to the
// content. An empty Members chain means a plain file.
type Location struct {
	Path    string
	Members []string

	opts archive.Options
}

// WithArchiveOptions returns l with opts applied to every archive reopened by
// Open, Size and Siblings. Locations derived from l inherit them.
func (l Location) WithArchiveOptions(opts archive.Options) Location {
	l.opts = opts
	return l
}

// ArchiveOptions returns the options Open uses for archive members.
func (l Location) ArchiveOptions() archive.Options { return l.opts }

// FromPath returns a plain file location.
func FromPath(p string) Location {
	return Location{Path: filepath.Clean(p)}
}

// Parse reverses String. The on-disk part is the longest "!"-free prefix that
// names an existing regular file, so paths containing "!" still resolve.
func Parse(s string) Location {
	for i := 0; i < len(s); i++ {
		if s[i] != Separator[0] {
			continue
		}
		prefix := s[:i]
		if info, err := os.Stat(prefix); err == nil && info.Mode().IsRegular() {
			rest := strings.Split(s[i+1:], Separator)
			members := rest[:0]
			for _, m := range rest {
				if m != "" {
					members = append(members, m)
				}
			}
			return Location{Path: filepath.Clean(prefix), Members: members}
		}
	}
	return FromPath(s)
}

// Child returns the location of member inside l.
func (l Location) Child(member string) Location {
	members := make([]string, len(l.Members), len(l.Members)+1)
	copy(members, l.Members)
	return Location{Path: l.Path, Members: append(members, member), opts: l.opts}
}

// InArchive reports whether the content lives inside an archive.
func (l Location) InArchive() bool { return len(l.Members) > 0 }

// IsZero reports whether l names nothing.
func (l Location) IsZero() bool { return l.Path == "" }

func (l Location) String() string {
	if !l.InArchive() {
		return l.Path
	}
	return l.Path + Separator + strings.Join(l.Members, Separator)
}

// Name returns the final path element.
func (l Location) Name() string {
	if l.InArchive() {
		return path.Base(l.Members[len(l.Members)-1])
	}
	return filepath.Base(l.Path)
}

// Ext returns the lowercase extension of Name, including the dot.
func (l Location) Ext() string {
	return strings.ToLower(filepath.Ext(l.Name()))
}

// Base returns Name without its extension.
func (l Location) Base() string {
	name := l.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Parent returns the archive containing l. For plain files it returns l.
func (l Location) Parent() Location {
	if !l.InArchive() {
		return l
	}
	return Location{Path: l.Path, Members: append([]string(nil), l.Members[:len(l.Members)-1]...), opts: l.opts}
}

// Dir returns the containing directory. Archive members report the archive
// location followed by the member directory, e.g. "/roms/set.zip!sub".
func (l Location) Dir() string {
	if !l.InArchive() {
		return filepath.Dir(l.Path)
	}
	parent := l.Parent().String()
	if dir := path.Dir(l.Members[len(l.Members)-1]); dir != "." {
		return parent + Separator + dir
	}
	return parent
}

// Sibling returns the location of name in the same directory as l.
func (l Location) Sibling(name string) Location {
	if !l.InArchive() {
		return Location{Path: filepath.Join(filepath.Dir(l.Path), name), opts: l.opts}
	}
	members := append([]string(nil), l.Members...)
	last := len(members) - 1
	members[last] = path.Join(path.Dir(members[last]), name)
	return Location{Path: l.Path, Members: members, opts: l.opts}
}

// WithExt replaces the extension of the final element.
func (l Location) WithExt(ext string) Location {
	if !l.InArchive() {
		return Location{Path: strings.TrimSuffix(l.Path, filepath.Ext(l.Path)) + ext, opts: l.opts}
	}
	members := append([]string(nil), l.Members...)
	last := len(members) - 1
	members[last] = strings.TrimSuffix(members[last], path.Ext(members[last])) + ext
	return Location{Path: l.Path, Members: members, opts: l.opts}
}

// Exists reports whether the content can be found.
func (l Location) Exists() bool {
	_, err := l.Size()
	return err == nil
}

// Size returns the content length in bytes.
func (l Location) Size() (int64, error) {
	return l.SizeWith(l.opts)
}

// SizeWith is Size with explicit archive options.
func (l Location) SizeWith(opts archive.Options) (int64, error) {
	if !l.InArchive() {
		info, err := os.Stat(l.Path)
		if err != nil {
			return 0, err
		}
		if info.IsDir() {
			return 0, fmt.Errorf("%s is a directory", l.Path)
		}
		return info.Size(), nil
	}
	reader, err := l.openContainer(opts)
	if err != nil {
		return 0, err
	}
	defer reader.Close()
	entries, err := reader.Entries()
	if err != nil {
		return 0, err
	}
	name := l.Members[len(l.Members)-1]
	for _, entry := range entries {
		if entry.Name != name || entry.Dir {
			continue
		}
		if entry.Size >= 0 {
			return entry.Size, nil
		}
		rc, err := reader.Open(name)
		if err != nil {
			return 0, err
		}
		defer rc.Close()
		return io.Copy(io.Discard, rc)
	}
	return 0, fmt.Errorf("%s: %w", l, os.ErrNotExist)
}

// Open returns a stream over the content, reopening every archive in the
// chain. Closing the stream releases all of them.
func (l Location) Open() (io.ReadCloser, error) {
	return l.OpenWith(l.opts)
}

// OpenWith is Open with explicit archive options.
func (l Location) OpenWith(opts archive.Options) (io.ReadCloser, error) {
	if !l.InArchive() {
		return os.Open(l.Path)
	}
	reader, err := l.openContainer(opts)
	if err != nil {
		return nil, err
	}
	rc, err := reader.Open(l.Members[len(l.Members)-1])
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("open %s: %w", l, err)
	}
	return &chainedReader{ReadCloser: rc, container: reader}, nil
}

// ReadAll returns the full content.
func (l Location) ReadAll() ([]byte, error) {
	rc, err := l.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Siblings lists the names co-located with l, including l itself.
func (l Location) Siblings() ([]string, error) {
	if !l.InArchive() {
		entries, err := os.ReadDir(filepath.Dir(l.Path))
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if !entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
		return names, nil
	}
	reader, err := l.openContainer(l.opts)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	entries, err := reader.Entries()
	if err != nil {
		return nil, err
	}
	dir := path.Dir(l.Members[len(l.Members)-1])
	var names []string
	for _, entry := range entries {
		if !entry.Dir && path.Dir(entry.Name) == dir {
			names = append(names, path.Base(entry.Name))
		}
	}
	return names, nil
}

// openContainer opens the archive directly holding the final member.
func (l Location) openContainer(opts archive.Options) (archive.Reader, error) {
	src, err := archive.FileSource(l.Path)
	if err != nil {
		return nil, err
	}
	reader, err := archive.OpenDetected(src, opts)
	if err != nil {
		return nil, err
	}
	for _, member := range l.Members[:len(l.Members)-1] {
		rc, err := reader.Open(member)
		if err != nil {
			reader.Close()
			return nil, fmt.Errorf("open nested archive %s: %w", member, err)
		}
		src, err := archive.ReadSource(path.Base(member), rc, opts.MaxBuffer)
		rc.Close()
		reader.Close()
		if err != nil {
			return nil, err
		}
		if reader, err = archive.OpenDetected(src, opts); err != nil {
			return nil, err
		}
	}
	return reader, nil
}

type chainedReader struct {
	io.ReadCloser
	container archive.Reader
}

func (r *chainedReader) Close() error {
	return errors.Join(r.ReadCloser.Close(), r.container.Close())
}
