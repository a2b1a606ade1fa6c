// Package stageexec runs the fixed stage sequence against a working
// directory, verifying each stage's artifact contract and stopping at the
// first failure.
package stageexec
