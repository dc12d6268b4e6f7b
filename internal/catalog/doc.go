// Package catalog parses software catalogs into in-memory databases of known
// dumps and their expected checksums.
//
// Two dialects are supported: the line-oriented DAT format
// (clrmamepro/game/rom blocks) used by bulk multi-system catalogs, and the
// XML software-list format with its software/part/dataarea/rom nesting. Both
// produce the same Database shape. Databases are built eagerly and never
// mutated after construction, so they are safe for concurrent readers.
//
// Repository caches one Database per catalog file and rebuilds it when the
// file's modification time changes or Reload is called.
package catalog
