// Package cache provides the synthesis cache shared by a session's workers.
// Ephemeral entries live in a bounded FIFO store; pinned entries (fixed
// phrases such as a failure notice) live in an unbounded store that is never
// evicted.
package cache
