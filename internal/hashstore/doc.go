// Package hashstore persists image checksums in SQLite so repeated
// identification of unchanged files skips hashing.
//
// Rows are keyed by path, image kind, size and modification time; any change
// to the file produces a new key and the stale row is ignored until Prune
// removes it. The Store satisfies media.ChecksumCache.
package hashstore
