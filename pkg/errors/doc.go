// Package errors provides structured error types for better observability
// and programmatic error handling across the push pipeline.
//
// Every pipeline stage classifies its failures with an ErrorCode so the
// orchestrator can map an error to an exit code and the diagnostics output
// can group failures by stage.
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodePush,
//	    "failed to push image to registry",
//	    cause,
//	    map[string]interface{}{
//	        "repository": dest.Repository,
//	        "registry": dest.Registry,
//	    },
//	)
package errors
