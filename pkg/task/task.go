/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package task

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
	"github.com/NVIDIA/ocipush/pkg/pipeline"
)

// Environment variable names for FromEnv.
const (
	EnvArchivePath = "OCIPUSH_ARCHIVE"
	EnvRegistry    = "OCIPUSH_REGISTRY"
	EnvRepository  = "OCIPUSH_REPOSITORY"
	EnvTags        = "OCIPUSH_TAGS"
	EnvPlainHTTP   = "OCIPUSH_PLAIN_HTTP"
	EnvInsecureTLS = "OCIPUSH_INSECURE_TLS"
)

// Task is the fixed property struct a build system binds. Every field is
// a plain string so property binding stays a thin, uniform wrapper; Parse
// performs all interpretation.
type Task struct {
	// ArchivePath is the OCI image archive to push. Required.
	ArchivePath string
	// Registry is the destination registry host. Required.
	Registry string
	// Repository optionally overrides the archive-derived repository.
	Repository string
	// Tags is an optional comma- or semicolon-separated tag list.
	Tags string
	// PlainHTTP is an optional boolean string ("true"/"false").
	PlainHTTP string
	// InsecureTLS is an optional boolean string ("true"/"false").
	InsecureTLS string
}

// FromEnv builds a Task from OCIPUSH_* environment variables.
func FromEnv() Task {
	return Task{
		ArchivePath: os.Getenv(EnvArchivePath),
		Registry:    os.Getenv(EnvRegistry),
		Repository:  os.Getenv(EnvRepository),
		Tags:        os.Getenv(EnvTags),
		PlainHTTP:   os.Getenv(EnvPlainHTTP),
		InsecureTLS: os.Getenv(EnvInsecureTLS),
	}
}

// Parse interprets the bound strings into pipeline inputs.
func (t Task) Parse() (pipeline.Inputs, error) {
	in := pipeline.Inputs{
		ArchivePath: strings.TrimSpace(t.ArchivePath),
		Registry:    strings.TrimSpace(t.Registry),
		Repository:  strings.TrimSpace(t.Repository),
	}

	tags, err := splitTags(t.Tags)
	if err != nil {
		return pipeline.Inputs{}, err
	}
	in.Tags = tags

	if in.PlainHTTP, err = parseBool("PlainHTTP", t.PlainHTTP); err != nil {
		return pipeline.Inputs{}, err
	}
	if in.InsecureTLS, err = parseBool("InsecureTLS", t.InsecureTLS); err != nil {
		return pipeline.Inputs{}, err
	}

	return in, nil
}

// Run parses the task and executes the pipeline, returning the process
// exit code for the build step.
func (t Task) Run(ctx context.Context) int {
	in, err := t.Parse()
	if err != nil {
		slog.Error("invalid task configuration", "error", err)
		return 1
	}
	return pipeline.New(in).Run(ctx, in).ExitCode
}

// splitTags splits a comma- or semicolon-separated tag list. Empty
// entries between separators are rejected rather than dropped so a typo
// like "latest,,v1" surfaces instead of silently shrinking the list.
func splitTags(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.FieldsFunc(trimmed, func(r rune) bool { return r == ',' || r == ';' })
	sep := strings.Count(trimmed, ",") + strings.Count(trimmed, ";")
	if len(parts) != sep+1 {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			"tag list contains empty entries",
			map[string]any{"tags": raw})
	}

	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" {
			return nil, apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
				"tag list contains empty entries",
				map[string]any{"tags": raw})
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func parseBool(name, raw string) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, apperrors.WrapWithContext(apperrors.ErrCodeInvalidRequest,
			"invalid boolean task property", err,
			map[string]any{"property": name, "value": raw})
	}
	return v, nil
}
