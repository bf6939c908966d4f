// Package atomicops makes a sequence of in-memory mutation steps against
// one player's queue document appear atomic to every other caller.
//
// The protocol per operation: acquire the player's advisory lock with a
// bounded wait, load the current document, apply the command to a copy,
// validate (repairing deterministically when possible), then persist with
// a conditional write against the loaded version. Version conflicts retry
// the whole load/apply/save cycle with exponential backoff up to a bound.
// The lock is released on every exit path.
package atomicops
