// Package control holds the configuration and metrics primitives shared
// by the acceptor and connection reactor: ConfigStore for immutable
// construction-parameter snapshots, and MetricsRegistry for live counters.
// Both are optional — reactors function with a nil store/registry.
package control
