// Package request loads stack request descriptors.
//
// A descriptor is a JSON (or YAML) document naming the project, the raw
// interferogram products, the region of interest and the processing
// thresholds. Numeric values keep the integer or float kind they were written
// with so the identity hash sees exactly the text the descriptor carried.
package request
