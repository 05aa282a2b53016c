// Package reactor provides the readiness multiplexor: a thin handle around
// a kernel readiness object plus a control channel used to drive the
// daisy-chained shutdown protocol shared by the acceptor and connection
// reactors.
package reactor
