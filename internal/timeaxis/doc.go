// Package timeaxis reads the acquisition dates recorded in the processed
// stack and converts them to ISO-8601 timesteps.
package timeaxis
