// Package archive extracts OCI image archives into uniquely named
// temporary directories.
//
// An archive is a tar stream (optionally gzip compressed) whose root holds
// an OCI image layout: an index.json plus content-addressed blobs. The
// extractor owns nothing beyond producing the directory; the caller owns
// the directory's lifetime and removes it with Cleanup when the run ends.
//
// Extraction is cancellation-aware (the context is checked between
// entries) and traversal-safe: entries that would escape the target
// directory are rejected.
package archive
