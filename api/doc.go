// Package api holds the small set of types shared across reactor
// packages: the user-supplied Handler contract and the error taxonomy
// both reactors construct and return.
package api
