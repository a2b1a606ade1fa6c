// Package main hosts the ifgstack CLI entrypoint and command graph.
//
// The root command runs one stack job for a request descriptor in the
// current (or --workdir) directory. Subcommands expose the dry identity
// derivation, environment checks, the run history kept in the ledger and
// configuration scaffolding.
//
// Keep this package lean: the heavy lifting lives in internal/workflow and
// the packages it wires together.
package main
