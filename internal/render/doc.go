// Package render writes the auxiliary files the processing stages read from
// the working directory: the interferogram listing, the sample resource file,
// the two descriptor scripts, and the user function module.
//
// Templates are embedded and may be overridden per file by placing a file of
// the same name in the configured template directory.
package render
