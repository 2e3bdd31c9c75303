// Package oci reads OCI image-layout metadata and pushes layout content to
// OCI-compliant registries.
//
// The package provides the three metadata-facing pieces of the push
// pipeline:
//
//   - LoadIndex / ValidateIndex: read and validate the index.json manifest
//     list from an extracted archive.
//   - ResolveDestinations: reconcile explicit repository/tag overrides with
//     the ref-name annotations found in the index, producing the ordered
//     set of push destinations.
//   - RegistryPusher: transfer the extracted layout to a registry using
//     ORAS (OCI Registry As Storage), one destination at a time.
//
// # Authentication
//
// The pusher automatically uses Docker credential helpers. Credentials are
// loaded from the standard Docker configuration (~/.docker/config.json)
// using the ORAS credentials package.
package oci
