/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package oci

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
)

const (
	// indexFile is the manifest list file at the root of an OCI image layout.
	indexFile = "index.json"

	// supportedSchemaVersion is the only index schema version accepted.
	supportedSchemaVersion = 2
)

// indexLoadMsg is the single user-facing message for every index read
// failure; the underlying cause is attached for diagnostics.
const indexLoadMsg = "failed to load repository/tag information from archive"

// LoadIndex reads and deserializes the index.json inside an extracted
// archive directory.
//
// No schema validation happens here; callers must run ValidateIndex before
// trusting SchemaVersion or MediaType.
func LoadIndex(dir string) (*ociv1.Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeIndexLoad, indexLoadMsg, err)
	}

	var idx ociv1.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeIndexLoad, indexLoadMsg, err)
	}

	return &idx, nil
}

// ValidateIndex checks that the index carries the supported schema version
// and media type and that every manifest descriptor is well formed.
func ValidateIndex(idx *ociv1.Index) error {
	if idx == nil {
		return apperrors.New(apperrors.ErrCodeFormat, "image index is missing")
	}

	if idx.SchemaVersion != supportedSchemaVersion {
		return apperrors.NewWithContext(apperrors.ErrCodeFormat,
			"unsupported image index schema version",
			map[string]any{"schemaVersion": idx.SchemaVersion})
	}

	if idx.MediaType != ociv1.MediaTypeImageIndex {
		return apperrors.NewWithContext(apperrors.ErrCodeFormat,
			"unsupported image index media type",
			map[string]any{"mediaType": idx.MediaType})
	}

	for _, m := range idx.Manifests {
		if _, err := digest.Parse(string(m.Digest)); err != nil {
			return apperrors.WrapWithContext(apperrors.ErrCodeFormat,
				"invalid manifest digest in image index", err,
				map[string]any{"digest": string(m.Digest)})
		}
		if m.Size < 0 {
			return apperrors.NewWithContext(apperrors.ErrCodeFormat,
				"negative manifest size in image index",
				map[string]any{"digest": string(m.Digest)})
		}
	}

	return nil
}
