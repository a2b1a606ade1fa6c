// Package config loads, normalizes, and validates ifgstack configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// IFGSTACK_CATALOG_URL and MINIO_ACCESS_KEY. The Config type centralizes every
// knob the CLI and pipeline need: catalog endpoints, stage commands, bundle
// naming, and optional publishing and metrics outputs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
