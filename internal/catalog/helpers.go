package catalog

import (
	"database/sql"
	"errors"
	"time"

	"romlib/internal/program"
)

const recordColumns = "id, location, format, primary_crc, companion_crc, companion, stock_companion, size_bytes, scanned_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id           int64
		loc          string
		formatName   string
		primaryCRC   int64
		companionCRC int64
		companion    sql.NullString
		stock        int64
		size         int64
		scannedRaw   sql.NullString
	)
	if err := scanner.Scan(&id, &loc, &formatName, &primaryCRC, &companionCRC, &companion, &stock, &size, &scannedRaw); err != nil {
		return nil, err
	}

	format, err := program.ParseFormat(formatName)
	if err != nil {
		format = program.Unknown
	}
	rec := &Record{
		ID:             id,
		Location:       loc,
		Format:         format,
		FormatName:     formatName,
		PrimaryCRC:     uint32(primaryCRC),
		CompanionCRC:   uint32(companionCRC),
		Companion:      companion.String,
		StockCompanion: stock != 0,
		SizeBytes:      size,
	}
	if scanned, err := parseTimeString(scannedRaw.String); err == nil {
		rec.ScannedAt = scanned
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
