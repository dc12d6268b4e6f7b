// Package config loads, normalizes, and validates romident configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// ROMIDENT_CATALOG_DIRS and ROMIDENT_LOG_LEVEL. Unknown keys are rejected so
// typos surface instead of silently falling back to defaults.
package config
