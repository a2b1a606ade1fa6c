// Package cleanup removes consumed inputs after a successful run and
// persists diagnostics after a failed one.
package cleanup
