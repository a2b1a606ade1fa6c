// Package metadata writes the two catalog descriptors that accompany every
// bundle: <id>.met.json with product metadata and <id>.dataset.json with the
// GeoJSON footprint and time span.
package metadata
