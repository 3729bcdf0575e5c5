package discovery

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"romlib/internal/archive"
	"romlib/internal/location"
	"romlib/internal/logging"
)

// progressEvery controls how often the walker logs its running count.
const progressEvery = 250

// frame is one level of the work stack: either a list of on-disk paths
// (the inputs or a directory listing) or the members of an open archive.
type frame struct {
	loc     location.Location
	paths   []string
	reader  archive.Reader
	entries []archive.Entry
	next    int
}

func (f *frame) close() error {
	if f.reader == nil {
		return nil
	}
	err := f.reader.Close()
	f.reader = nil
	return err
}

// Walker lazily enumerates candidate program locations below a set of input
// paths, descending into directories and enabled archive formats depth
// first. A Walker is not safe for concurrent use.
type Walker struct {
	ctx     context.Context
	opts    Options
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	stack   []*frame
	err     error
	done    bool
}

// New returns a Walker over inputs. Nothing is read until Next is called.
func New(ctx context.Context, inputs []string, opts Options) *Walker {
	if ctx == nil {
		ctx = context.Background()
	}
	paths := make([]string, 0, len(inputs))
	for _, in := range inputs {
		paths = append(paths, filepath.Clean(in))
	}
	return &Walker{
		ctx:     ctx,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "discovery"),
		sampler: logging.NewProgressSampler(progressEvery),
		stack:   []*frame{{paths: paths}},
	}
}

// Next returns the following candidate. It returns false when the walk is
// exhausted, cancelled or failed; Err distinguishes failure.
func (w *Walker) Next() (location.Location, bool) {
	for !w.done {
		if w.cancelled() {
			w.finish()
			break
		}
		if len(w.stack) == 0 {
			w.finish()
			break
		}
		top := w.stack[len(w.stack)-1]
		var (
			loc location.Location
			ok  bool
		)
		if top.reader != nil {
			loc, ok = w.stepArchive(top)
		} else {
			loc, ok = w.stepPaths(top)
		}
		if ok {
			w.yielded(loc)
			return loc, true
		}
	}
	return location.Location{}, false
}

// Err reports the context error that stopped the walk, if any. Predicate
// cancellation and per-entry failures are not errors.
func (w *Walker) Err() error { return w.err }

// Close releases every open archive. It is safe to call more than once.
func (w *Walker) Close() error {
	w.done = true
	var errs []error
	for i := len(w.stack) - 1; i >= 0; i-- {
		errs = append(errs, w.stack[i].close())
	}
	w.stack = nil
	return errors.Join(errs...)
}

// All adapts the walker to a range-over-func iterator. The walker is closed
// when iteration ends.
func (w *Walker) All() iter.Seq[location.Location] {
	return func(yield func(location.Location) bool) {
		defer w.Close()
		for {
			loc, ok := w.Next()
			if !ok || !yield(loc) {
				return
			}
		}
	}
}

// Collect drains the walker into a slice.
func Collect(ctx context.Context, inputs []string, opts Options) ([]location.Location, error) {
	w := New(ctx, inputs, opts)
	var out []location.Location
	for loc := range w.All() {
		out = append(out, loc)
	}
	return out, w.Err()
}

func (w *Walker) cancelled() bool {
	if err := w.ctx.Err(); err != nil {
		w.err = err
		return true
	}
	return w.opts.Cancel != nil && w.opts.Cancel()
}

func (w *Walker) finish() {
	w.Close()
	if w.sampler.Count() > 0 {
		w.logger.Debug("discovery finished", logging.Int("candidates", w.sampler.Count()))
	}
}

func (w *Walker) yielded(loc location.Location) {
	if w.sampler.ShouldLog() {
		w.logger.Debug("discovery progress",
			logging.Int("candidates", w.sampler.Count()),
			logging.String(logging.FieldPath, loc.String()),
		)
	}
	if w.opts.Progress != nil {
		w.opts.Progress(loc.String())
	}
}

func (w *Walker) pop() {
	top := w.stack[len(w.stack)-1]
	if err := top.close(); err != nil {
		w.logger.Debug("close archive failed", logging.String(logging.FieldPath, top.loc.String()), logging.Error(err))
	}
	w.stack = w.stack[:len(w.stack)-1]
}

// stepPaths handles one on-disk path from a path frame.
func (w *Walker) stepPaths(f *frame) (location.Location, bool) {
	if f.next >= len(f.paths) {
		w.pop()
		return location.Location{}, false
	}
	p := f.paths[f.next]
	f.next++

	info, err := os.Lstat(p)
	if err != nil {
		w.skip(p, "stat failed", err)
		return location.Location{}, false
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if info, err = os.Stat(p); err != nil {
			w.skip(p, "broken symlink", err)
			return location.Location{}, false
		}
		if info.IsDir() {
			w.logger.Debug("not following directory symlink", logging.String(logging.FieldPath, p))
			return location.Location{}, false
		}
	}

	switch {
	case info.IsDir():
		w.pushDir(p)
		return location.Location{}, false
	case !info.Mode().IsRegular():
		return location.Location{}, false
	}

	loc := location.FromPath(p).WithArchiveOptions(w.opts.ArchiveOptions())
	if format := w.archiveFormat(loc.Name(), func() (archive.Format, error) { return sniffFile(p) }); format != archive.None {
		if w.opts.archiveTooLarge(info.Size()) {
			w.logger.Debug("archive exceeds size cap", logging.String(logging.FieldPath, p), logging.Int64("size", info.Size()))
			return location.Location{}, false
		}
		w.pushArchive(loc, func() (archive.Reader, error) {
			src, err := archive.FileSource(p)
			if err != nil {
				return nil, err
			}
			return archive.Open(format, src, w.opts.ArchiveOptions())
		})
		return location.Location{}, false
	}

	if !w.opts.programExtension(loc.Name()) || w.opts.tooLarge(info.Size()) {
		return location.Location{}, false
	}
	return loc, true
}

// stepArchive handles one member of an archive frame.
func (w *Walker) stepArchive(f *frame) (location.Location, bool) {
	if f.next >= len(f.entries) {
		w.pop()
		return location.Location{}, false
	}
	entry := f.entries[f.next]
	f.next++
	if entry.Dir {
		return location.Location{}, false
	}
	loc := f.loc.Child(entry.Name)

	if w.opts.NestedArchives {
		reader := f.reader
		format := w.archiveFormat(path.Base(entry.Name), func() (archive.Format, error) {
			return sniffMember(reader, entry.Name)
		})
		if format != archive.None {
			if entry.Size >= 0 && w.opts.archiveTooLarge(entry.Size) {
				w.logger.Debug("nested archive exceeds size cap", logging.String(logging.FieldPath, loc.String()))
				return location.Location{}, false
			}
			w.pushArchive(loc, func() (archive.Reader, error) {
				rc, err := reader.Open(entry.Name)
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				src, err := archive.ReadSource(path.Base(entry.Name), rc, w.opts.MaxArchiveSize)
				if err != nil {
					return nil, err
				}
				return archive.Open(format, src, w.opts.ArchiveOptions())
			})
			return location.Location{}, false
		}
	}

	size := entry.Size
	if size < 0 && w.opts.MaxProgramSize > 0 {
		var err error
		if size, err = memberSize(f.reader, entry.Name); err != nil {
			w.skip(loc.String(), "read member failed", err)
			return location.Location{}, false
		}
	}
	if w.opts.tooLarge(size) {
		return location.Location{}, false
	}
	return loc, true
}

// archiveFormat decides whether a file should be entered as an archive.
// Names with a known archive suffix are trusted; other names are sniffed
// only when Unknown is enabled and they do not look like programs.
func (w *Walker) archiveFormat(name string, sniff func() (archive.Format, error)) archive.Format {
	if format := archive.FormatForName(name); format != archive.None {
		if w.opts.Formats.Has(format) {
			return format
		}
		return archive.None
	}
	if !w.opts.Formats.Has(archive.Unknown) || w.opts.programExtension(name) && len(w.opts.Extensions) > 0 {
		return archive.None
	}
	format, err := sniff()
	if err != nil || !archive.Available().Has(format) {
		return archive.None
	}
	return format
}

func (w *Walker) pushDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.skip(dir, "read directory failed", err)
		return
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	w.stack = append(w.stack, &frame{loc: location.FromPath(dir), paths: paths})
}

func (w *Walker) pushArchive(loc location.Location, open func() (archive.Reader, error)) {
	reader, err := open()
	if err != nil {
		w.skip(loc.String(), "open archive failed", err)
		return
	}
	entries, err := reader.Entries()
	if err != nil && len(entries) == 0 {
		reader.Close()
		w.skip(loc.String(), "list archive failed", err)
		return
	}
	if err != nil {
		w.logger.Debug("archive listing truncated", logging.String(logging.FieldPath, loc.String()), logging.Error(err))
	}
	w.stack = append(w.stack, &frame{loc: loc, reader: reader, entries: entries})
}

// skip logs a discovery-time failure. Discovery never surfaces these.
func (w *Walker) skip(target, reason string, err error) {
	w.logger.Warn("discovery skipped entry",
		logging.String(logging.FieldPath, target),
		logging.String("reason", reason),
		logging.Error(err),
		logging.String(logging.FieldEventType, "discovery_skip"),
		logging.String(logging.FieldErrorHint, "check that the path is readable"),
		logging.String(logging.FieldImpact, "entry not scanned"),
	)
}

func sniffFile(path string) (archive.Format, error) {
	src, err := archive.FileSource(path)
	if err != nil {
		return archive.None, err
	}
	defer src.Close()
	return archive.Sniff(src)
}

func sniffMember(reader archive.Reader, name string) (archive.Format, error) {
	rc, err := reader.Open(name)
	if err != nil {
		return archive.None, err
	}
	defer rc.Close()
	header := make([]byte, archive.SniffSize)
	n, err := io.ReadFull(rc, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return archive.None, err
	}
	return archive.Detect(header[:n]), nil
}

func memberSize(reader archive.Reader, name string) (int64, error) {
	rc, err := reader.Open(name)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return io.Copy(io.Discard, rc)
}
