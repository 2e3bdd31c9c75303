/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package oci

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
)

// stripProtocol removes http:// or https:// prefix from a registry URL.
func stripProtocol(registry string) string {
	registry = strings.TrimPrefix(registry, "https://")
	registry = strings.TrimPrefix(registry, "http://")
	return registry
}

// ValidateRegistryReference checks that registry and repository combine into
// a well-formed image reference. The registry may carry an http(s) prefix,
// which is stripped before validation.
func ValidateRegistryReference(registry, repository string) error {
	host := stripProtocol(registry)
	if host == "" {
		return apperrors.New(apperrors.ErrCodeInvalidRequest, "registry is required")
	}
	if repository == "" {
		return apperrors.New(apperrors.ErrCodeInvalidRequest, "repository is required")
	}

	refString := fmt.Sprintf("%s/%s", host, repository)
	if _, err := reference.ParseNormalizedNamed(refString); err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeInvalidRequest,
			"invalid registry reference", err,
			map[string]any{"registry": registry, "repository": repository})
	}
	return nil
}

// validateTag checks that tag is a legal image tag for the given
// registry/repository pair.
func validateTag(registry, repository, tag string) error {
	refString := fmt.Sprintf("%s/%s", stripProtocol(registry), repository)
	named, err := reference.ParseNormalizedNamed(refString)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid registry reference", err)
	}
	if _, err := reference.WithTag(named, tag); err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeInvalidRequest,
			"invalid image tag", err,
			map[string]any{"tag": tag})
	}
	return nil
}
