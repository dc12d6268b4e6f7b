// Package errkind defines the error kinds surfaced by image readers, catalog
// parsers and the identification engine.
//
// Low-level codec failures (sector geometry, block decode, header format) are
// fatal for the image being read and bubble up unchanged. Catalog parse errors
// are recovered one file at a time. Absence of a match is not an error at all.
// Use errors.Is against the sentinels, or Kind for a string classification.
package errkind
