// Package preflight provides readiness checks for the working directory,
// the external executables, and the catalog a run depends on.
//
// The run command calls RunAll before touching the working directory and
// stops when a check fails. The check command prints every result.
package preflight
