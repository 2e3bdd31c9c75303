// Package serializer provides utilities for serializing push outcome
// reports to various formats.
//
// The package supports three output formats:
//   - JSON: Machine-readable structured data with proper indentation
//   - YAML: Human-readable configuration format
//   - Table: Human-readable tabular output for terminal use
//
// Usage:
//
//	writer := serializer.NewFileWriterOrStdout(serializer.FormatJSON, path)
//	defer writer.Close() // Important: close to release file handles
//	if err := writer.Serialize(ctx, report); err != nil {
//	    return err
//	}
//
// Table output requires the value to implement the Tabular interface;
// JSON and YAML accept any value.
package serializer
