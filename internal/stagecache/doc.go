// Package stagecache keeps validated local copies of program images.
//
// Each source directory maps to a staging subdirectory named by a short
// BLAKE3 hash of the directory. Copies are verified by CRC32 on the way in,
// and IsInCache compares staged copies against their sources so stale
// entries are replaced rather than trusted.
package stagecache
