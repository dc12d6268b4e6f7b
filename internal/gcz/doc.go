// Package gcz reads block-indexed compressed disc images.
//
// A GCZ file is a 32-byte header, a table of one 8-byte pointer per block, a
// table of one 4-byte hash per block, then the block data. Each pointer is an
// offset into the data region; its top bit marks a block stored verbatim
// instead of zlib-deflated. A block's compressed length is the distance to the
// next pointer, or to the end of the data region for the final block.
//
// Reads decode only the blocks overlapping the requested range and keep
// recently decoded blocks in an ARC cache.
package gcz
