// Package identity derives the canonical product identity of a stack.
//
// The identity is a pure function of the filtered parameter set: the same
// envelope, reference window, thresholds, flags, track, sensor, platforms and
// date pairs always yield the same string, whatever order the inputs arrived
// in. The digest input is an explicitly ordered list of fields, each rendered
// in canonical text; changing either the order or the rendering requires a
// new schema Version.
package identity
