// Package cli provides the ocipush command line interface.
//
// The CLI is a thin adapter: it translates flags and environment
// variables into the pipeline's input struct and reports the pipeline's
// outcome. The build-task adapter in pkg/task is the second entry point
// over the same core; the task subcommand here exposes it to runners that
// configure build steps purely through the environment.
package cli
