package stagecache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"romlib/internal/logging"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Stats describes current staging usage.
type Stats struct {
	Directories  int            `json:"directories"`
	Files        int            `json:"files"`
	TotalBytes   int64          `json:"total_bytes"`
	FreeBytes    uint64         `json:"free_bytes"`
	TotalFSBytes uint64         `json:"total_fs_bytes"`
	Entries      []EntrySummary `json:"entries"`
}

// EntrySummary describes one staging subdirectory.
type EntrySummary struct {
	Directory  string    `json:"directory"`
	SizeBytes  int64     `json:"size_bytes"`
	FileCount  int       `json:"file_count"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Stats returns staging usage, newest subdirectory first.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if m == nil {
		return s, nil
	}
	entries, err := m.scan(ctx)
	if err != nil {
		return s, err
	}
	total, free, err := m.statfs(m.root)
	if err != nil {
		return s, fmt.Errorf("stagecache: statfs: %w", err)
	}
	s.Directories = len(entries)
	s.FreeBytes = free
	s.TotalFSBytes = total
	s.Entries = entries
	for _, e := range entries {
		s.Files += e.FileCount
		s.TotalBytes += e.SizeBytes
	}
	if len(entries) == 0 {
		m.logger.InfoContext(ctx, "staging area empty")
	}
	return s, nil
}

func (m *Manager) scan(ctx context.Context) ([]EntrySummary, error) {
	dirs, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stagecache: list root: %w", err)
	}
	entries := make([]EntrySummary, 0, len(dirs))
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(m.root, d.Name())
		summary, err := summarizeDir(path)
		if err != nil {
			m.logger.WarnContext(ctx, "skipping unreadable staging directory",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_scan_failed"),
				logging.String(logging.FieldErrorHint, "check permissions on the staging directory"),
				logging.String(logging.FieldImpact, "directory omitted from stats"),
			)
			continue
		}
		entries = append(entries, summary)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
	})
	return entries, nil
}

func summarizeDir(path string) (EntrySummary, error) {
	summary := EntrySummary{Directory: path}
	files, err := os.ReadDir(path)
	if err != nil {
		return summary, err
	}
	for _, f := range files {
		info, err := f.Info()
		if err != nil {
			return summary, err
		}
		if info.ModTime().After(summary.ModifiedAt) {
			summary.ModifiedAt = info.ModTime()
		}
		if info.Mode().IsRegular() {
			summary.FileCount++
			summary.SizeBytes += info.Size()
		}
	}
	return summary, nil
}
