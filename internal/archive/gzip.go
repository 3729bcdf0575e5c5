package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// gzipReader exposes each concatenated gzip member as an entry. Gzip has no
// index, so members are found by decompressing sequentially and at most
// maxEntries are read.
type gzipReader struct {
	src        Source
	maxEntries int
}

func (r *gzipReader) Format() Format { return GZip }

func (r *gzipReader) Entries() ([]Entry, error) {
	cur, err := r.cursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var entries []Entry
	for {
		name, ok, err := cur.next()
		if err != nil {
			return entries, err
		}
		if !ok {
			return entries, nil
		}
		n, err := io.Copy(io.Discard, cur)
		if err != nil {
			return entries, fmt.Errorf("read gzip member %s: %w", name, err)
		}
		entries = append(entries, Entry{Name: name, Size: n})
	}
}

func (r *gzipReader) Open(name string) (io.ReadCloser, error) {
	cur, err := r.cursor()
	if err != nil {
		return nil, err
	}
	for {
		member, ok, err := cur.next()
		if err != nil {
			cur.Close()
			return nil, err
		}
		if !ok {
			cur.Close()
			return nil, notFound(name)
		}
		if member == name {
			return cur, nil
		}
	}
}

func (r *gzipReader) Close() error { return r.src.Close() }

func (r *gzipReader) cursor() (*gzipCursor, error) {
	rc, err := r.src.Open()
	if err != nil {
		return nil, err
	}
	fallback := stripCompressionSuffix(r.src.Name)
	if fallback == "" || fallback == r.src.Name {
		fallback = r.src.Name + ".out"
	}
	return &gzipCursor{
		rc:       rc,
		br:       bufio.NewReader(rc),
		max:      r.maxEntries,
		fallback: fallback,
		seen:     make(map[string]int),
	}, nil
}

type gzipCursor struct {
	rc       io.ReadCloser
	br       *bufio.Reader
	z        *gzip.Reader
	index    int
	max      int
	fallback string
	seen     map[string]int
}

// next positions the cursor on the following member and returns its name.
func (c *gzipCursor) next() (string, bool, error) {
	if c.index >= c.max {
		return "", false, nil
	}
	if c.z == nil {
		z, err := gzip.NewReader(c.br)
		if err != nil {
			return "", false, fmt.Errorf("read gzip header: %w", err)
		}
		c.z = z
	} else {
		if _, err := io.Copy(io.Discard, c.z); err != nil {
			return "", false, fmt.Errorf("skip gzip member: %w", err)
		}
		if err := c.z.Reset(c.br); err != nil {
			if errors.Is(err, io.EOF) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("read gzip header: %w", err)
		}
	}
	c.z.Multistream(false)
	name := c.memberName(c.z.Name)
	c.index++
	return name, true, nil
}

// memberName prefers the stored file name and keeps names unique by
// suffixing repeats before the extension.
func (c *gzipCursor) memberName(stored string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(stored), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = c.fallback
	}
	count := c.seen[name]
	c.seen[name] = count + 1
	if count == 0 {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(count) + ext
}

func (c *gzipCursor) Read(p []byte) (int, error) {
	if c.z == nil {
		return 0, io.EOF
	}
	return c.z.Read(p)
}

func (c *gzipCursor) Close() error {
	if c.z != nil {
		c.z.Close()
	}
	return c.rc.Close()
}
