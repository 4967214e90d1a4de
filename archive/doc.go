// Package archive contains Store implementations that keep runs evicted
// from the run registry by its retention sweep.
//
// The registry only holds recent runs; an archive gives operators a longer
// history (newest first) without growing the registry. Two backends are
// provided: an in-process ring buffer and a SQLite database (pure Go, via
// modernc.org/sqlite).
package archive
