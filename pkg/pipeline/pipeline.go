/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"log/slog"
	"strings"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/NVIDIA/ocipush/pkg/archive"
	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
	"github.com/NVIDIA/ocipush/pkg/oci"
)

// Stage identifies where in the run the orchestrator currently is.
type Stage string

const (
	StageNotStarted Stage = "not-started"
	StageExtracting Stage = "extracting"
	StageResolving  Stage = "resolving"
	StagePushing    Stage = "pushing"
	StageCleaningUp Stage = "cleaning-up"
	StageDone       Stage = "done"
)

// Inputs is the fixed input struct both entry points (CLI command and
// build-task adapter) populate.
type Inputs struct {
	// ArchivePath is the OCI image archive to push. Required.
	ArchivePath string
	// Registry is the destination registry host. Required.
	Registry string
	// Repository optionally overrides the archive-derived repository.
	Repository string
	// Tags optionally override the archive-derived tags.
	Tags []string
	// PlainHTTP uses HTTP instead of HTTPS for the registry connection.
	PlainHTTP bool
	// InsecureTLS skips TLS certificate verification.
	InsecureTLS bool
}

// DestinationResult records the fate of one resolved destination.
type DestinationResult struct {
	Repository string   `json:"repository" yaml:"repository"`
	Tags       []string `json:"tags" yaml:"tags"`
	Registry   string   `json:"registry" yaml:"registry"`
	Pushed     bool     `json:"pushed" yaml:"pushed"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Outcome is the reduced result of one run. ExitCode is sticky: the first
// failure sets it and later failures never change it, though they are
// still appended to Errors.
type Outcome struct {
	ExitCode     int
	Stage        Stage
	Destinations []DestinationResult
	Errors       []error
}

// record notes an error, keeping the exit code of the first failure.
func (o *Outcome) record(err error) {
	if err == nil {
		return
	}
	o.Errors = append(o.Errors, err)
	if o.ExitCode == 0 {
		o.ExitCode = 1
	}
	slog.Error("push pipeline error", "stage", o.Stage, "error", err)
}

// Failed reports whether any stage recorded an error.
func (o *Outcome) Failed() bool {
	return o.ExitCode != 0
}

// Report is the serializable view of an Outcome for the diagnostics
// writer.
type Report struct {
	ExitCode     int                 `json:"exitCode" yaml:"exitCode"`
	Destinations []DestinationResult `json:"destinations" yaml:"destinations"`
	Errors       []string            `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Report converts the outcome into its serializable form.
func (o *Outcome) Report() Report {
	r := Report{
		ExitCode:     o.ExitCode,
		Destinations: o.Destinations,
	}
	for _, err := range o.Errors {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

// TableHeader implements the serializer's Tabular interface.
func (r Report) TableHeader() []string {
	return []string{"REPOSITORY", "TAGS", "REGISTRY", "STATUS"}
}

// TableRows implements the serializer's Tabular interface.
func (r Report) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Destinations))
	for _, d := range r.Destinations {
		status := "pushed"
		if !d.Pushed {
			status = "failed: " + d.Error
		}
		rows = append(rows, []string{d.Repository, strings.Join(d.Tags, ","), d.Registry, status})
	}
	return rows
}

// Orchestrator runs the push pipeline. The zero value is not usable; use
// New.
type Orchestrator struct {
	pusher oci.Pusher
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPusher overrides the registry pusher. Used by the adapters to pass a
// configured RegistryPusher and by tests to substitute a fake.
func WithPusher(p oci.Pusher) Option {
	return func(o *Orchestrator) { o.pusher = p }
}

// New creates an Orchestrator for the given inputs' transport settings.
func New(in Inputs, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pusher: oci.NewRegistryPusher(oci.PusherOptions{
			PlainHTTP:   in.PlainHTTP,
			InsecureTLS: in.InsecureTLS,
		}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline for one archive and returns the reduced
// outcome. It never panics across the pipeline boundary; cancellation and
// stage failures both surface as recorded errors with the extraction
// directory removed either way.
func (o *Orchestrator) Run(ctx context.Context, in Inputs) *Outcome {
	out := &Outcome{Stage: StageNotStarted}

	if err := validateInputs(in); err != nil {
		out.Stage = StageDone
		out.record(err)
		return out
	}

	dir := o.extract(ctx, in, out)
	if dir != "" {
		o.resolveAndPush(ctx, in, dir, out)
		o.cleanup(dir, out)
	}

	out.Stage = StageDone
	if !out.Failed() {
		slog.Info("push pipeline completed", "destinations", len(out.Destinations))
	}
	return out
}

func validateInputs(in Inputs) error {
	if in.ArchivePath == "" {
		return apperrors.New(apperrors.ErrCodeInvalidRequest, "archive path is required")
	}
	if in.Registry == "" {
		return apperrors.New(apperrors.ErrCodeInvalidRequest, "registry is required")
	}
	for _, tag := range in.Tags {
		if tag == "" {
			return apperrors.New(apperrors.ErrCodeInvalidRequest, "tags must not be empty strings")
		}
	}
	return nil
}

// extract runs the extraction stage. An empty return means the stage
// failed (or was cancelled) and the error is already recorded; no
// directory exists in that case.
func (o *Orchestrator) extract(ctx context.Context, in Inputs, out *Outcome) string {
	out.Stage = StageExtracting
	if err := ctx.Err(); err != nil {
		out.record(apperrors.Wrap(apperrors.ErrCodeCancelled, "run cancelled before extraction", err))
		return ""
	}

	dir, err := archive.Extract(ctx, in.ArchivePath)
	if err != nil {
		out.record(err)
		return ""
	}
	return dir
}

// resolveAndPush runs the resolution and push stages against an extracted
// directory.
func (o *Orchestrator) resolveAndPush(ctx context.Context, in Inputs, dir string, out *Outcome) {
	out.Stage = StageResolving
	if err := ctx.Err(); err != nil {
		out.record(apperrors.Wrap(apperrors.ErrCodeCancelled, "run cancelled before resolution", err))
		return
	}

	load := func() (*ociv1.Index, error) { return oci.LoadIndex(dir) }
	dests, err := oci.ResolveDestinations(load, in.Registry, in.Repository, in.Tags)
	if err != nil {
		out.record(err)
		return
	}
	if len(dests) == 0 {
		slog.Info("archive contains no manifests, nothing to push")
		return
	}

	out.Stage = StagePushing
	for _, dest := range dests {
		if err := ctx.Err(); err != nil {
			out.record(apperrors.Wrap(apperrors.ErrCodeCancelled, "run cancelled during push", err))
			return
		}

		result := DestinationResult{
			Repository: dest.Repository,
			Tags:       dest.Tags,
			Registry:   dest.Registry,
		}
		if err := o.pusher.Push(ctx, dir, dest); err != nil {
			result.Error = err.Error()
			out.Destinations = append(out.Destinations, result)
			out.record(err)
			// Later destinations are not attempted once one fails.
			return
		}
		result.Pushed = true
		out.Destinations = append(out.Destinations, result)
		slog.Info("destination pushed", "destination", dest.String())
	}
}

// cleanup removes the extraction directory. It runs regardless of earlier
// failures; its own failure is recorded but cannot downgrade an exit code
// already set.
func (o *Orchestrator) cleanup(dir string, out *Outcome) {
	out.Stage = StageCleaningUp
	if err := archive.Cleanup(dir); err != nil {
		out.record(err)
	}
}
