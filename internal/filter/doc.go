// Package filter selects the interferograms that make up a stack.
//
// The numerical selection is delegated to an external collaborator; this
// package prepares its inputs (including the footprint envelope when the
// request has no region of interest), normalizes its output into a Result
// keyed by date pair, and enforces the collection invariants: at least one
// record, a single track, and a single sensor.
package filter
