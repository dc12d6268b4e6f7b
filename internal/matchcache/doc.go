// Package matchcache provides a local cache that maps image CRC32 values to
// previously identified catalog records.
//
// A hit lets identification verify one record instead of scanning every
// catalog. Entries are advisory: the identification engine re-checks the
// cached record against the image before trusting it, so a stale entry only
// costs a full scan.
//
// # Storage
//
// The cache is a JSON file (default <cache_dir>/matches.json). Writes take an
// advisory file lock, merge with whatever another process saved meanwhile,
// and replace the file atomically.
//
// # Usage
//
// The cache is disabled by default. Enable it in config.toml:
//
//	[match_cache]
//	enabled = true
//
// CLI commands for inspection and management:
//
//	romident cache list             # List cached matches
//	romident cache remove <crc32>   # Remove one entry
//	romident cache clear            # Remove all entries
package matchcache
