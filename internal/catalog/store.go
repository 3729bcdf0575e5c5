package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"romlib/internal/archive"
	"romlib/internal/location"
	"romlib/internal/program"
)

// Record is one scanned program.
type Record struct {
	ID             int64          `json:"id"`
	Location       string         `json:"location"`
	Format         program.Format `json:"-"`
	FormatName     string         `json:"format"`
	PrimaryCRC     uint32         `json:"primary_crc"`
	CompanionCRC   uint32         `json:"companion_crc,omitempty"`
	Companion      string         `json:"companion,omitempty"`
	StockCompanion bool           `json:"stock_companion,omitempty"`
	SizeBytes      int64          `json:"size_bytes"`
	ScannedAt      time.Time      `json:"scanned_at"`
}

// RecordFromImage builds a record for img, computing checksums and size.
func RecordFromImage(img *program.Image) (Record, error) {
	primary, companion, err := img.Checksums()
	if err != nil {
		return Record{}, err
	}
	size, err := img.Primary.Size()
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Location:       img.Primary.String(),
		Format:         img.Format,
		FormatName:     img.Format.String(),
		PrimaryCRC:     primary,
		CompanionCRC:   companion,
		StockCompanion: img.StockCompanion,
		SizeBytes:      size,
		ScannedAt:      time.Now().UTC(),
	}
	if img.HasCompanion() {
		rec.Companion = img.Companion.String()
	}
	return rec, nil
}

// Store persists scan results in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts rec or replaces the record with the same location.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.Location == "" {
		return errors.New("record location is empty")
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO programs (
            location, format, primary_crc, companion_crc, companion,
            stock_companion, size_bytes, scanned_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(location) DO UPDATE SET
            format = excluded.format,
            primary_crc = excluded.primary_crc,
            companion_crc = excluded.companion_crc,
            companion = excluded.companion,
            stock_companion = excluded.stock_companion,
            size_bytes = excluded.size_bytes,
            scanned_at = excluded.scanned_at`,
		rec.Location,
		rec.Format.String(),
		int64(rec.PrimaryCRC),
		int64(rec.CompanionCRC),
		nullableString(rec.Companion),
		boolToInt(rec.StockCompanion),
		rec.SizeBytes,
		rec.ScannedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.Location, err)
	}
	return nil
}

// Get returns the record at loc, or nil when none exists.
func (s *Store) Get(ctx context.Context, loc string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM programs WHERE location = ?`, loc)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// List returns every record ordered by location.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM programs ORDER BY location`)
}

// FindByChecksum returns records whose primary checksum is crc.
func (s *Store) FindByChecksum(ctx context.Context, crc uint32) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM programs WHERE primary_crc = ? ORDER BY location`, int64(crc))
}

// Duplicates groups records that share a primary checksum.
func (s *Store) Duplicates(ctx context.Context) ([][]Record, error) {
	records, err := s.query(ctx, `SELECT `+recordColumns+` FROM programs
        WHERE primary_crc IN (SELECT primary_crc FROM programs GROUP BY primary_crc HAVING COUNT(1) > 1)
        ORDER BY primary_crc, location`)
	if err != nil {
		return nil, err
	}
	var groups [][]Record
	for _, rec := range records {
		if n := len(groups); n > 0 && groups[n-1][0].PrimaryCRC == rec.PrimaryCRC {
			groups[n-1] = append(groups[n-1], rec)
			continue
		}
		groups = append(groups, []Record{rec})
	}
	return groups, nil
}

// Remove deletes the record at loc and reports whether one existed.
func (s *Store) Remove(ctx context.Context, loc string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM programs WHERE location = ?`, loc)
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", loc, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM programs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Prune removes records whose content no longer exists and returns them.
// Archive members are reopened with opts.
func (s *Store) Prune(ctx context.Context, opts archive.Options) ([]Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []Record
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if location.Parse(rec.Location).WithArchiveOptions(opts).Exists() {
			continue
		}
		if _, err := s.Remove(ctx, rec.Location); err != nil {
			return removed, err
		}
		removed = append(removed, rec)
	}
	return removed, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
