// Package workflow drives one stack run end to end.
//
// A Pipeline loads the request descriptor, runs the filter collaborator,
// derives the product identity and consults the catalog gate. When the
// identity is new it renders the auxiliary files, executes the four
// processing stages in order, assembles the bundle, optionally publishes it,
// registers it with the catalog and finally removes the consumed inputs. A
// bundle left behind by a run that failed after assembly is picked up as is
// instead of rerunning the stages.
//
// Each run holds an advisory lock on its working directory, is recorded in
// the run ledger and, on failure, leaves _alt_error.txt and
// _alt_traceback.txt behind. Cleanup of inputs only happens after the bundle
// is complete.
package workflow
