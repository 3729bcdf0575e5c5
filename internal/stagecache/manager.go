package stagecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"romlib/internal/fileutil"
	"romlib/internal/location"
	"romlib/internal/logging"
	"romlib/internal/program"
)

// LockFileName is the cross-process lock guarding staging writes.
const LockFileName = ".romlib.lock"

// lockRetryDelay is how often Stage retries a held lock.
const lockRetryDelay = 50 * time.Millisecond

// Manager maintains validated local copies of program images under a
// staging root, one subdirectory per source directory.
type Manager struct {
	root   string
	logger *slog.Logger
	statfs statfsFunc

	mu   sync.Mutex
	dirs map[string]string
}

// NewManager returns a Manager rooted at root, or nil when root is empty.
func NewManager(root string, logger *slog.Logger) *Manager {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil
	}
	m := &Manager{
		root:   filepath.Clean(root),
		statfs: realStatfs,
		dirs:   make(map[string]string),
	}
	m.SetLogger(logger)
	return m
}

// SetLogger refreshes the manager's logging destination.
func (m *Manager) SetLogger(logger *slog.Logger) {
	if m == nil {
		return
	}
	m.logger = logging.NewComponentLogger(logger, "stagecache")
}

// Root returns the staging root.
func (m *Manager) Root() string { return m.root }

// Subdir returns the staging subdirectory for images from loc's directory.
// The hash is computed once per directory for the life of the Manager.
func (m *Manager) Subdir(loc location.Location) string {
	dir := loc.Dir()
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.dirs[dir]
	if !ok {
		name = HashDir(dir)
		m.dirs[dir] = name
	}
	return filepath.Join(m.root, name)
}

// PrimaryPath is where the staged copy of img's primary content lives. The
// staged name keeps the full source name, so game.bin and game.rom from one
// directory stage as game.bin.bin and game.rom.rom.
func (m *Manager) PrimaryPath(img *program.Image) string {
	return filepath.Join(m.Subdir(img.Primary), stagedBase(img.Primary.Name())+img.Format.Extension())
}

// CompanionPath is where the staged companion lives. Every companion,
// stock or co-located, is staged under the primary's staged name so the
// converter finds it next to the staged primary.
func (m *Manager) CompanionPath(img *program.Image) string {
	return filepath.Join(m.Subdir(img.Primary), stagedBase(img.Primary.Name())+program.CompanionExtension)
}

// CanonicalPath is where a canonical conversion of the staged copy lands.
func (m *Manager) CanonicalPath(img *program.Image) string {
	return filepath.Join(m.Subdir(img.Primary), stagedBase(img.Primary.Name())+program.CanonicalContainer.Extension())
}

// IsInCache reports whether img has a staged copy and whether that copy
// differs from the source. A missing staged primary is (false, true). The
// source checksums are refreshed before comparing.
func (m *Manager) IsInCache(img *program.Image) (present, changed bool, err error) {
	cached := m.PrimaryPath(img)
	if !fileExists(cached) {
		return false, true, nil
	}
	cachedCRC, err := fileutil.FileChecksum(cached)
	if err != nil {
		return false, true, fmt.Errorf("stagecache: checksum staged copy: %w", err)
	}
	if err := img.Refresh(); err != nil {
		return false, true, fmt.Errorf("stagecache: checksum source: %w", err)
	}
	sourceCRC, err := img.PrimaryChecksum()
	if err != nil {
		return false, true, err
	}

	cfgPresent, cfgChanged, err := m.isConfigFileInCache(img)
	if err != nil {
		return false, true, err
	}
	return cfgPresent, cachedCRC != sourceCRC || cfgChanged, nil
}

// isConfigFileInCache checks the staged companion. Without a source
// companion the check passes, but a leftover staged descriptor counts as a
// change. A source companion with no staged copy is (false, true).
func (m *Manager) isConfigFileInCache(img *program.Image) (present, changed bool, err error) {
	cached := m.CompanionPath(img)
	if !img.HasCompanion() {
		return true, fileExists(cached), nil
	}
	if !fileExists(cached) {
		return false, true, nil
	}
	cachedCRC, err := fileutil.FileChecksum(cached)
	if err != nil {
		return false, true, fmt.Errorf("stagecache: checksum staged companion: %w", err)
	}
	sourceCRC, err := img.CompanionChecksum()
	if err != nil {
		return false, true, err
	}
	return true, cachedCRC != sourceCRC, nil
}

// Stage copies img into the staging area unless a current copy exists and
// returns the staged image. Copies are checksum-verified and the staging
// root is locked against concurrent romlib processes while writing.
func (m *Manager) Stage(ctx context.Context, img *program.Image) (*program.Image, error) {
	if m == nil {
		return nil, errors.New("stagecache: no staging root configured")
	}
	if !img.Valid() {
		return nil, errors.New("stagecache: invalid image")
	}
	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := logging.WithContext(ctx, m.logger)
	present, changed, err := m.IsInCache(img)
	if err != nil {
		return nil, err
	}
	if present && !changed {
		logger.Debug("staged copy current", logging.String(logging.FieldPath, img.Primary.String()))
		return m.StagedImage(img), nil
	}

	primaryCRC, companionCRC, err := img.Checksums()
	if err != nil {
		return nil, err
	}
	if err := copyVerified(img.Primary, m.PrimaryPath(img), primaryCRC); err != nil {
		return nil, fmt.Errorf("stagecache: stage primary: %w", err)
	}
	cfgPath := m.CompanionPath(img)
	if img.HasCompanion() {
		if err := copyVerified(img.Companion, cfgPath, companionCRC); err != nil {
			return nil, fmt.Errorf("stagecache: stage companion: %w", err)
		}
	} else if err := os.Remove(cfgPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stagecache: remove stale companion: %w", err)
	}

	logger.Info("staged program",
		logging.String(logging.FieldPath, img.Primary.String()),
		logging.String("staged_path", m.PrimaryPath(img)),
		logging.Checksum(logging.FieldChecksum, primaryCRC),
		logging.String(logging.FieldEventType, "program_staged"),
	)
	return m.StagedImage(img), nil
}

// StagedImage describes the staged copy of img without touching disk.
func (m *Manager) StagedImage(img *program.Image) *program.Image {
	var companion location.Location
	if img.HasCompanion() {
		companion = location.FromPath(m.CompanionPath(img))
	}
	return program.NewImage(img.Format, location.FromPath(m.PrimaryPath(img)), companion, false)
}

// StagedCanonical returns the staged canonical conversion of img if one
// exists. Callers must still check its header against the source.
func (m *Manager) StagedCanonical(img *program.Image) (*program.Image, bool) {
	path := m.CanonicalPath(img)
	if !fileExists(path) {
		return nil, false
	}
	return program.NewImage(program.CanonicalContainer, location.FromPath(path), location.Location{}, false), true
}

// Purge removes every staging subdirectory.
func (m *Manager) Purge(ctx context.Context) (int, error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stagecache: list root: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, entry.Name())); err != nil {
			return removed, fmt.Errorf("stagecache: remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	m.logger.InfoContext(ctx, "staging area purged", logging.Int("count", removed))
	return removed, nil
}

func (m *Manager) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("stagecache: create root: %w", err)
	}
	fl := flock.New(filepath.Join(m.root, LockFileName))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("stagecache: lock staging root: %w", err)
	}
	if !locked {
		return nil, errors.New("stagecache: staging root is locked by another process")
	}
	return func() { _ = fl.Unlock() }, nil
}

func copyVerified(src location.Location, dst string, want uint32) error {
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return fileutil.CopyVerified(rc, dst, want)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
