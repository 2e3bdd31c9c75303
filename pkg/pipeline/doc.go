// Package pipeline orchestrates the archive-to-registry push run.
//
// A run moves through fixed stages: extract the archive into a temp
// directory, resolve push destinations from explicit overrides and the
// archive's index annotations, push each destination strictly in sequence,
// and remove the temp directory. Cleanup happens unconditionally once a
// directory exists, on success, failure, and cancellation alike.
//
// Each stage returns a typed result that the next stage consumes; the run
// reduces the stage sequence to a single Outcome holding the sticky exit
// code and every error recorded along the way. The first error decides the
// exit code, but later independent failures (a cleanup failure after a
// push failure, for instance) are still reported.
package pipeline
