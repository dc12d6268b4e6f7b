// Package sector translates logical ("cooked") offsets inside an optical-disc
// track into physical ("raw") offsets of the sector-interleaved file backing
// it, and performs reads that stitch the data regions of consecutive sectors
// together.
//
// Two geometries are recognized: plain 2048-byte sectors (pass-through) and
// Mode-1 raw sectors carrying a 16-byte sync/header and a 288-byte EDC/ECC
// footer around 2048 bytes of user data. Any other sector size is rejected
// with an UnsupportedGeometryError rather than guessed at.
package sector
