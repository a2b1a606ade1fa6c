// Package services defines shared utilities consumed by the pipeline
// components and their external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and product identities
//     for logging and error reports.
//   - Structured error markers plus the Wrap helper that classify failures
//     (configuration, filtering, stage, assembly, catalog) consistently.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error classification, observability) stays uniform across the run.
package services
