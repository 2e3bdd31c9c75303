/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package oci

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/time/rate"
	oras "oras.land/oras-go/v2"
	ocistore "oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
)

// Default throttle for registry requests. Generous enough for any real
// push, low enough to stay clear of registry rate limits on CI runners.
const (
	defaultRequestRate  = rate.Limit(50)
	defaultRequestBurst = 100
)

// Pusher transfers extracted archive content to a registry destination.
// This is the collaborator contract the orchestrator consumes; the ORAS
// implementation below is the production one.
type Pusher interface {
	Push(ctx context.Context, layoutDir string, dest Destination) error
}

// PusherOptions configures a RegistryPusher.
type PusherOptions struct {
	// PlainHTTP uses HTTP instead of HTTPS for the registry connection.
	PlainHTTP bool
	// InsecureTLS skips TLS certificate verification.
	InsecureTLS bool
	// RequestRate caps registry requests per second. Zero means default.
	RequestRate rate.Limit
	// RequestBurst is the throttle's burst allowance. Zero means default.
	RequestBurst int
}

// RegistryPusher pushes OCI image-layout content to remote registries
// using ORAS.
type RegistryPusher struct {
	plainHTTP bool
	client    *auth.Client
}

// NewRegistryPusher creates a pusher with Docker credential support and a
// rate-limited transport.
func NewRegistryPusher(opts PusherOptions) *RegistryPusher {
	if opts.RequestRate == 0 {
		opts.RequestRate = defaultRequestRate
	}
	if opts.RequestBurst == 0 {
		opts.RequestBurst = defaultRequestBurst
	}
	return &RegistryPusher{
		plainHTTP: opts.PlainHTTP,
		client:    createAuthClient(opts),
	}
}

// Push transfers the layout content for one destination, tagging every
// tag the destination carries. Tags are pushed in order; the first failure
// stops the destination.
func (p *RegistryPusher) Push(ctx context.Context, layoutDir string, dest Destination) error {
	store, err := ocistore.NewFromFS(ctx, os.DirFS(layoutDir))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePush, "failed to open extracted image layout", err)
	}

	repoRef := fmt.Sprintf("%s/%s", stripProtocol(dest.Registry), dest.Repository)
	repo, err := remote.NewRepository(repoRef)
	if err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodePush,
			"failed to initialize remote repository", err,
			map[string]any{"repository": repoRef})
	}
	repo.PlainHTTP = p.plainHTTP
	repo.Client = p.client

	for _, tag := range dest.Tags {
		if err := ctx.Err(); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeCancelled, "push cancelled", err)
		}

		desc, err := p.resolveSource(ctx, store, layoutDir, dest.Repository, tag)
		if err != nil {
			return err
		}

		if err := oras.CopyGraph(ctx, store, repo, desc, oras.DefaultCopyGraphOptions); err != nil {
			return classifyPushError(ctx, err, dest)
		}
		if err := repo.Tag(ctx, desc, tag); err != nil {
			return classifyPushError(ctx, err, dest)
		}

		slog.Info("image pushed",
			"registry", dest.Registry,
			"repository", dest.Repository,
			"tag", tag,
			"digest", desc.Digest.String(),
		)
	}

	return nil
}

// resolveSource picks the manifest to push for one repository:tag pair.
// Archive-derived destinations resolve through the layout's own ref-name
// annotations. A full explicit override has no matching annotation, so it
// falls back to the layout's sole manifest; several manifests under a full
// override are ambiguous and rejected.
func (p *RegistryPusher) resolveSource(ctx context.Context, store *ocistore.ReadOnlyStore, layoutDir, repository, tag string) (ociv1.Descriptor, error) {
	ref := fmt.Sprintf("%s:%s", repository, tag)
	if desc, err := store.Resolve(ctx, ref); err == nil {
		return desc, nil
	}

	idx, err := LoadIndex(layoutDir)
	if err != nil {
		return ociv1.Descriptor{}, err
	}
	if len(idx.Manifests) != 1 {
		return ociv1.Descriptor{}, apperrors.NewWithContext(apperrors.ErrCodePush,
			"cannot select a manifest to push: archive holds multiple manifests and none matches the destination",
			map[string]any{"destination": ref, "manifests": len(idx.Manifests)})
	}
	return idx.Manifests[0], nil
}

// classifyPushError separates registry-protocol failures, whose messages
// are end-user-ready and reported verbatim, from generic transfer errors.
func classifyPushError(ctx context.Context, err error, dest Destination) error {
	if ctx.Err() != nil {
		return apperrors.Wrap(apperrors.ErrCodeCancelled, "push cancelled", ctx.Err())
	}

	var resp *errcode.ErrorResponse
	if apperrors.As(err, &resp) {
		return &apperrors.StructuredError{
			Code:    apperrors.ErrCodePush,
			Message: resp.Error(),
			Context: map[string]any{
				"registry":   dest.Registry,
				"repository": dest.Repository,
			},
		}
	}

	return apperrors.WrapWithContext(apperrors.ErrCodePush,
		"failed to push image to registry", err,
		map[string]any{
			"registry":   dest.Registry,
			"repository": dest.Repository,
		})
}

// createAuthClient creates an HTTP client with optional TLS configuration,
// Docker credential support, and request throttling.
func createAuthClient(opts PusherOptions) *auth.Client {
	credStore, _ := credentials.NewStoreFromDocker(credentials.StoreOptions{})

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.PlainHTTP && opts.InsecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
		}
	}

	return &auth.Client{
		Client: &http.Client{
			Transport: &throttledTransport{
				base:    transport,
				limiter: rate.NewLimiter(opts.RequestRate, opts.RequestBurst),
			},
		},
		Cache:      auth.NewCache(),
		Credential: credentials.Credential(credStore),
	}
}

// throttledTransport applies a token-bucket limit to outgoing registry
// requests, honoring the request context while waiting.
type throttledTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
