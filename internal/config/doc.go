// Package config loads, normalizes, and validates romlib configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ROMLIB_STAGING_DIR. The Config type centralizes every knob the CLI and the
// library packages need: where staged copies live, which archives discovery
// descends into, which external converters produce canonical images, and
// which feature bits comparisons ignore.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extension lists, and clear validation errors.
package config
