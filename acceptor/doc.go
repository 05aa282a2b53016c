// Package acceptor implements the acceptor reactor: one listener thread
// that binds and drains accept-readiness on listening sockets, handing
// each accepted connection to a wrapped connection reactor.
package acceptor
