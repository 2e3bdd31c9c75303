/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/ocipush/pkg/pipeline"
	"github.com/NVIDIA/ocipush/pkg/serializer"
	"github.com/NVIDIA/ocipush/pkg/task"
)

var (
	outputFlag = &cli.StringFlag{
		Name:  "output",
		Usage: "Write the outcome report to a file instead of stdout",
	}
	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: fmt.Sprintf("Outcome report format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
		Value: string(serializer.FormatJSON),
	}
)

func pushCmd() *cli.Command {
	return &cli.Command{
		Name:                  "push",
		EnableShellCompletion: true,
		Usage:                 "Push a built OCI image archive to a registry",
		Description: `Push a previously built OCI image archive (a tarball containing an
index.json plus blobs) to a remote container registry, without a
container engine.

Destinations come from the archive's ref-name annotations unless
overridden:

  - No --repository and no --tag: push every repository:tag pair the
    archive's index declares.
  - Both --repository and --tag: push exactly that destination; the
    archive's own metadata is ignored.
  - Only one of the two: allowed when the archive holds a single
    repository; the explicit value replaces the archive-derived one.

# Examples

Push everything the archive declares:
  ocipush push --archive app.tar --registry ghcr.io

Push under an explicit name:
  ocipush push --archive app.tar --registry ghcr.io \
    --repository team/app --tag latest --tag v1.2.3

Local development registry over HTTP:
  ocipush push --archive app.tar --registry localhost:5000 --plain-http`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "archive",
				Usage:    "Path to the OCI image archive (tar or tar.gz)",
				Sources:  cli.EnvVars("OCIPUSH_ARCHIVE"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "registry",
				Usage:    "Destination registry host (e.g. ghcr.io, localhost:5000)",
				Sources:  cli.EnvVars("OCIPUSH_REGISTRY"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "repository",
				Usage:   "Override the archive-derived repository",
				Sources: cli.EnvVars("OCIPUSH_REPOSITORY"),
			},
			&cli.StringSliceFlag{
				Name:    "tag",
				Usage:   "Override the archive-derived tags (can be repeated)",
				Sources: cli.EnvVars("OCIPUSH_TAGS"),
			},
			&cli.BoolFlag{
				Name:  "plain-http",
				Usage: "Use HTTP instead of HTTPS for the registry connection",
			},
			&cli.BoolFlag{
				Name:  "insecure-tls",
				Usage: "Skip TLS certificate verification",
			},
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat := serializer.Format(cmd.String("format"))
			if outFormat.IsUnknown() {
				return fmt.Errorf("unknown output format: %q", outFormat)
			}

			in := pipeline.Inputs{
				ArchivePath: cmd.String("archive"),
				Registry:    cmd.String("registry"),
				Repository:  cmd.String("repository"),
				Tags:        cmd.StringSlice("tag"),
				PlainHTTP:   cmd.Bool("plain-http"),
				InsecureTLS: cmd.Bool("insecure-tls"),
			}

			out := pipeline.New(in).Run(ctx, in)

			writer := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			defer func() { _ = writer.Close() }()
			if err := writer.Serialize(ctx, out.Report()); err != nil {
				return fmt.Errorf("failed to write outcome report: %w", err)
			}

			if out.Failed() {
				return cli.Exit(fmt.Sprintf("push failed with %d error(s)", len(out.Errors)), out.ExitCode)
			}
			return nil
		},
	}
}

func taskCmd() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Run as an automated build step configured via OCIPUSH_* environment variables",
		Description: `Run the push pipeline as a build step. All configuration comes from
the environment:

  OCIPUSH_ARCHIVE       path to the OCI image archive (required)
  OCIPUSH_REGISTRY      destination registry host (required)
  OCIPUSH_REPOSITORY    optional repository override
  OCIPUSH_TAGS          optional comma/semicolon separated tag overrides
  OCIPUSH_PLAIN_HTTP    "true" to use HTTP
  OCIPUSH_INSECURE_TLS  "true" to skip TLS verification`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if code := task.FromEnv().Run(ctx); code != 0 {
				return cli.Exit("push task failed", code)
			}
			return nil
		},
	}
}
