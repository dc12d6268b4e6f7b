// Package media opens game images as a closed set of variants: plain files,
// archive members, sector-interleaved disc tracks, GCZ block images, folders,
// playlists and CHD images identified by their header hash.
//
// Open dispatches on the file extension alone. Byte-readable variants compute
// CRC32 and SHA1 in a single streaming pass over bounded chunks and cache the
// result for the lifetime of the Image, optionally backed by a persistent
// ChecksumCache. Folders and playlists are not byte-readable; identification
// defers to their first child (see Primary).
package media
