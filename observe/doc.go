// Package observe provides observability primitives for gateway
// operations.
//
// It is a pure instrumentation library: no execution, no transport, no
// I/O beyond exporter setup. Consumers wire the observer into the
// gateway's provider chain or server middleware.
package observe
