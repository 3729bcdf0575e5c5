// Package program models program images and recognizes their encodings.
//
// An Image names the primary content and an optional companion descriptor
// and caches both CRC32 checksums until refreshed. The Classifier inspects
// content rather than trusting extensions: canonical containers by magic and
// header CRC, native containers by their segment table, and raw binaries by
// extension and even length once nothing else matched. Header and
// CanonicalChecksum implement the canonical container prefix and the
// origin-independent checksum used by deep comparisons.
package program
