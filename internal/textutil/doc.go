// Package textutil folds and compares software titles.
//
// Fold reduces a title to a comparison form: Unicode compatibility
// decomposition, accent marks removed, case folded. Fingerprints are
// term-frequency vectors over folded tokens, compared with cosine similarity
// to rank near misses when no exact name match exists.
package textutil
