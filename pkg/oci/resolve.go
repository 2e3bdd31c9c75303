/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package oci

import (
	"fmt"
	"slices"
	"strings"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
)

// Destination is a resolved (registry, repository, tags) push target.
// Constructed once per run by ResolveDestinations and immutable thereafter.
type Destination struct {
	// Registry is the registry host the destination binds to.
	Registry string
	// Repository is the image repository path within the registry.
	Repository string
	// Tags are the tags to push, in first-seen order, never empty.
	Tags []string
}

// String returns the destination as registry/repository plus its tag list.
func (d Destination) String() string {
	return fmt.Sprintf("%s/%s:%s", stripProtocol(d.Registry), d.Repository, strings.Join(d.Tags, ","))
}

// IndexLoader supplies the archive's image index on demand. Resolution
// paths that never consult the archive (explicit repository AND tags)
// never invoke it, so an unreadable index cannot fail a full override.
type IndexLoader func() (*ociv1.Index, error)

// ResolveDestinations reconciles explicit repository/tag overrides with
// the ref-name annotations in the archive's index and returns the ordered
// destinations to push.
//
// Resolution policy, mutually exclusive and in priority order:
//
//  1. Neither repository nor tags given: every destination is derived from
//     the index; one archive may hold several repositories.
//  2. Both given: exactly one destination from the explicit values; the
//     archive index is not consulted.
//  3. Only repository given: valid when the archive derives exactly one
//     repository; the explicit repository adopts the archive's tags.
//  4. Only tags given: valid when the archive derives exactly one
//     repository; the archive's repository adopts the explicit tags.
//
// An empty result with a nil error means the archive holds no manifests
// and there is nothing to push.
func ResolveDestinations(load IndexLoader, registry, repository string, tags []string) ([]Destination, error) {
	hasRepo := repository != ""
	hasTags := len(tags) > 0

	if hasRepo && hasTags {
		return resolveExplicit(registry, repository, tags)
	}

	idx, err := load()
	if err != nil {
		return nil, err
	}
	if err := ValidateIndex(idx); err != nil {
		return nil, err
	}

	derived, err := deriveDestinations(idx, registry)
	if err != nil {
		return nil, err
	}
	if len(derived) == 0 {
		// Index with zero manifests: nothing to push, not an error.
		return nil, nil
	}

	switch {
	case !hasRepo && !hasTags:
		return derived, nil

	case hasRepo:
		if len(derived) != 1 {
			return nil, apperrors.NewWithContext(apperrors.ErrCodeFormat,
				"cannot override repository when archive contains multiple repositories",
				map[string]any{"repositories": len(derived)})
		}
		return resolveExplicit(registry, repository, derived[0].Tags)

	case hasTags:
		if len(derived) != 1 {
			return nil, apperrors.NewWithContext(apperrors.ErrCodeFormat,
				"cannot override tags when archive contains multiple repositories",
				map[string]any{"repositories": len(derived)})
		}
		return resolveExplicit(registry, derived[0].Repository, tags)

	default:
		// Unreachable with two optional inputs, guarded anyway.
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest,
			"repository and tags must both be supplied or both omitted")
	}
}

// resolveExplicit builds the single destination for fully specified
// repository and tags, validating every part.
func resolveExplicit(registry, repository string, tags []string) ([]Destination, error) {
	if err := ValidateRegistryReference(registry, repository); err != nil {
		return nil, err
	}
	for _, tag := range tags {
		if err := validateTag(registry, repository, tag); err != nil {
			return nil, err
		}
	}
	return []Destination{{
		Registry:   stripProtocol(registry),
		Repository: repository,
		Tags:       tags,
	}}, nil
}

// deriveDestinations extracts repository:tag pairs from the index's
// ref-name annotations, grouped by repository in first-seen order.
//
// Malformed annotation values are collected across the whole index and
// reported in one aggregated error so the user sees every offending entry
// in a single pass.
func deriveDestinations(idx *ociv1.Index, registry string) ([]Destination, error) {
	if len(idx.Manifests) == 0 {
		return nil, nil
	}

	var (
		repoOrder  []string
		tagsByRepo = map[string][]string{}
		invalid    []string
		annotated  int
	)

	for _, m := range idx.Manifests {
		ref := m.Annotations[ociv1.AnnotationRefName]
		if ref == "" {
			continue
		}
		annotated++

		repo, tag, ok := splitRefName(ref)
		if !ok {
			invalid = append(invalid, ref)
			continue
		}

		if _, seen := tagsByRepo[repo]; !seen {
			repoOrder = append(repoOrder, repo)
		}
		if !slices.Contains(tagsByRepo[repo], tag) {
			tagsByRepo[repo] = append(tagsByRepo[repo], tag)
		}
	}

	if len(invalid) > 0 {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeFormat,
			fmt.Sprintf("malformed %s annotations (expected repository:tag): %s",
				ociv1.AnnotationRefName, strings.Join(invalid, ", ")),
			map[string]any{"annotation": ociv1.AnnotationRefName, "values": invalid})
	}

	if annotated == 0 {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeFormat,
			"no valid repository/tag annotations found in archive index",
			map[string]any{"annotation": ociv1.AnnotationRefName, "manifests": len(idx.Manifests)})
	}

	dests := make([]Destination, 0, len(repoOrder))
	for _, repo := range repoOrder {
		if err := ValidateRegistryReference(registry, repo); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeFormat,
				fmt.Sprintf("archive-derived repository %q is not valid for registry %q", repo, registry), err)
		}
		for _, tag := range tagsByRepo[repo] {
			if err := validateTag(registry, repo, tag); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrCodeFormat,
					fmt.Sprintf("archive-derived tag %q is not valid", tag), err)
			}
		}
		dests = append(dests, Destination{
			Registry:   stripProtocol(registry),
			Repository: repo,
			Tags:       tagsByRepo[repo],
		})
	}
	return dests, nil
}

// splitRefName splits a ref-name annotation value into repository and tag.
// Exactly one colon must be present and both sides must be non-empty.
func splitRefName(ref string) (repo, tag string, ok bool) {
	if strings.Count(ref, ":") != 1 {
		return "", "", false
	}
	repo, tag, _ = strings.Cut(ref, ":")
	if repo == "" || tag == "" {
		return "", "", false
	}
	return repo, tag, true
}
