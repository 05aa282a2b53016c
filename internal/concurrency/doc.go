// Package concurrency provides the lock-free primitives shared by
// reactorkit's reactors: today, the connection-slot free-list.
package concurrency
