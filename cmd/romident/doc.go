// Package main hosts the romident CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation, opens
// the catalog repository and caches it describes, and hands images to the
// identification engine. Results go to stdout as a table on terminals, as
// tab-separated rows when piped, or as JSON on request; logs go to stderr.
//
// Keep this package lean: matching, parsing and caching live in internal
// packages and are only surfaced here through commands and flags.
package main
