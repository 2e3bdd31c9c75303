// Package task adapts automated build steps to the push pipeline.
//
// CI systems bind a fixed struct of string properties; Parse turns those
// strings into validated pipeline inputs. FromEnv offers the same binding
// from OCIPUSH_* environment variables for build runners that pass
// configuration through the environment. Both converge on the same
// orchestration core as the CLI command.
package task
