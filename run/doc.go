// Package run implements the run registry: the in-memory store of run
// records with their lifecycle state machine, addressing rules, concurrency
// admission and retention sweep.
//
// The registry is the only writer of run records. Readers always receive
// copies, so a Record obtained from Get, Resolve or List never changes
// underneath the caller.
package run
