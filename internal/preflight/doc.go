// Package preflight provides readiness checks for the filesystem paths and
// caches romident depends on.
//
// The CLI "romident config validate" command runs RunAll and prints one line
// per check. Checks for disabled features are skipped.
package preflight
