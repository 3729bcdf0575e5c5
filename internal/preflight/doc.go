// Package preflight provides readiness checks for the directories and
// external converter tools romlib depends on.
//
// The CLI "romlib check" command runs every check and renders the results.
// Converter tools are only required when the configured comparison mode
// converts programs; otherwise they are reported as optional.
package preflight
