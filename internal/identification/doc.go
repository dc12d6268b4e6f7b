// Package identification matches media images against catalog databases.
//
// Matching runs in two phases. The exact phase compares checksums: a single
// ROM segment by SHA1 or CRC32, a multi-segment data area by total size and
// per-segment CRC32 over sub-ranges of the image, and disk-only parts by the
// image SHA1. Catalogs are consulted in the order supplied and records in
// stored order; the first satisfied record wins.
//
// The fuzzy phase runs only when the exact phase fails and the caller
// supplies a name. Names are folded and stripped of bracketed tags, then
// candidates are gated on demo and prototype tags and narrowed by region and
// finally by version. Anything but exactly one survivor is no match.
//
// No match is a normal outcome reported through Result.Matched, not an
// error. Errors are reserved for unreadable or corrupt images.
package identification
