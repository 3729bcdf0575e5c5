// Package compare decides whether two program images hold the same program.
//
// CRC and Strict compare checksums (and declared features) of the images as
// they are. Canonical and CanonicalStrict convert each side to the canonical
// encoding through a Session, which owns any temporary conversions it makes
// and deletes them on Close.
package compare
