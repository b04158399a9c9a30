// Package queue runs synthesis jobs on a small fixed pool of workers.
// Each submitted segment gets a Future resolved exactly once; the pool makes
// no promise about completion order, consumers restore order themselves.
package queue
