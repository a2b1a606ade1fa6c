// Package stage defines the contract for one external processing step of the
// stack pipeline and the exec-backed implementation used in production.
//
// A Stage declares the working-directory artifacts it consumes and produces so
// the executor can verify the contract around every run without knowing what
// the underlying tool does.
package stage
