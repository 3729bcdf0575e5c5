// Package catalog persists scanned programs in a SQLite database so later
// runs can look programs up by checksum without rescanning the library.
//
// Schema changes ship as embedded SQL migrations applied in order on Open.
package catalog
