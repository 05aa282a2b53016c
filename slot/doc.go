// Package slot defines the connection-slot record type used throughout
// reactorkit. It has no behavior of its own beyond the bookkeeping needed to
// sit on the free-list and carry a socket descriptor and read buffer.
package slot
