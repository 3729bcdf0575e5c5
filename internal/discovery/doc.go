// Package discovery walks files, directories and archives to find candidate
// program files.
//
// The Walker keeps an explicit stack of directory listings and open archive
// readers. Each call to Next performs bounded work, polls for cancellation
// and returns at most one candidate; Close releases every open archive.
// Failures on individual entries are logged and skipped.
package discovery
