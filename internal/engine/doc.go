// Package engine admits test executions, runs them under a global
// concurrency cap and streams their progress to a single observer each.
//
// Submissions without an attached stream are cancelled, submissions beyond
// the cap wait in a FIFO admission queue, and every execution ends in exactly
// one terminal status that is appended to the history store.
package engine
