package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// columnKind decides how raw cell values are formatted and aligned.
type columnKind int

const (
	textColumn columnKind = iota
	locationColumn
	countColumn
	bytesColumn
	checksumColumn
	ageColumn
)

// maxLocationWidth bounds location cells. Longer locations keep their tail,
// which holds the file and member names.
const maxLocationWidth = 72

type column struct {
	title string
	kind  columnKind
}

// report is a rounded table whose cells hold raw values: int counts, int64
// byte sizes, uint32 checksums and time.Duration ages. A nil cell prints as
// "-".
type report struct {
	columns    []column
	rows       []table.Row
	totalLabel string
}

func newReport(columns ...column) *report {
	return &report{columns: columns}
}

func (r *report) add(cells ...any) {
	row := make(table.Row, len(r.columns))
	copy(row, cells)
	r.rows = append(r.rows, row)
}

// withTotals adds a footer summing the count and byte columns.
func (r *report) withTotals(label string) *report {
	r.totalLabel = label
	return r
}

func (r *report) render() string {
	if len(r.columns) == 0 {
		return ""
	}

	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	tw := table.NewWriter()
	tw.SetStyle(style)

	header := make(table.Row, len(r.columns))
	configs := make([]table.ColumnConfig, 0, len(r.columns))
	for i, col := range r.columns {
		header[i] = col.title
		cfg := table.ColumnConfig{
			Number:            i + 1,
			AlignHeader:       text.AlignLeft,
			Transformer:       col.kind.format,
			TransformerFooter: col.kind.format,
		}
		switch col.kind {
		case countColumn, bytesColumn, ageColumn:
			cfg.Align = text.AlignRight
			cfg.AlignFooter = text.AlignRight
		case locationColumn:
			cfg.WidthMax = maxLocationWidth
			cfg.WidthMaxEnforcer = trimLeading
		}
		configs = append(configs, cfg)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)
	for _, row := range r.rows {
		tw.AppendRow(row)
	}
	if r.totalLabel != "" {
		tw.AppendFooter(r.totals())
	}
	return tw.Render() + "\n"
}

func (r *report) totals() table.Row {
	footer := make(table.Row, len(r.columns))
	for i, col := range r.columns {
		switch col.kind {
		case countColumn:
			sum := 0
			for _, row := range r.rows {
				if n, ok := row[i].(int); ok {
					sum += n
				}
			}
			footer[i] = sum
		case bytesColumn:
			var sum int64
			for _, row := range r.rows {
				if n, ok := row[i].(int64); ok {
					sum += n
				}
			}
			footer[i] = sum
		default:
			footer[i] = ""
		}
	}
	footer[0] = r.totalLabel
	return footer
}

func (k columnKind) format(val any) string {
	if val == nil {
		return "-"
	}
	switch k {
	case countColumn:
		if n, ok := val.(int); ok {
			return strconv.Itoa(n)
		}
	case bytesColumn:
		if n, ok := val.(int64); ok {
			return humanBytes(n)
		}
	case checksumColumn:
		if crc, ok := val.(uint32); ok {
			return formatCRC(crc)
		}
	case ageColumn:
		if d, ok := val.(time.Duration); ok {
			return formatDuration(d)
		}
	}
	return fmt.Sprint(val)
}

func trimLeading(value string, maxLen int) string {
	runes := []rune(value)
	if maxLen < 2 || len(runes) <= maxLen {
		return value
	}
	return "…" + string(runes[len(runes)-maxLen+1:])
}
