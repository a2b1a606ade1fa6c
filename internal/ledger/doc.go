// Package ledger records every run in a local sqlite database so operators
// can see what was produced, skipped, or failed in each working directory.
package ledger
