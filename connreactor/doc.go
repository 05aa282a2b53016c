// Package connreactor is the connection reactor: a lock-free free-list of
// preallocated slots, a worker pool sharing one edge-triggered readiness
// object, the event-flag decoding table that drives per-slot reads and
// writes, and the daisy-chained shutdown protocol that winds workers down.
package connreactor
