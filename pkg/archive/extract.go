/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package archive

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
)

// dirPrefix is the name prefix for extraction directories under the
// process-wide temp root. The uuid suffix keeps concurrent runs sharing a
// temp root from colliding.
const dirPrefix = "ocipush-"

// gzipMagic is the two-byte gzip stream signature.
var gzipMagic = []byte{0x1f, 0x8b}

// Extract unpacks the archive at archivePath into a fresh, uniquely named
// directory under the system temp root and returns that directory.
//
// The caller owns the returned directory and must remove it with Cleanup.
// On failure the partially written directory is left in place for the
// caller's best-effort cleanup pass; no directory path is returned.
func Extract(ctx context.Context, archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to open image archive", err)
	}
	defer func() { _ = f.Close() }()

	dir := filepath.Join(os.TempDir(), dirPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to create extraction directory", err)
	}

	if err := extractStream(ctx, f, dir); err != nil {
		// Best effort: the caller never learns the path on failure, so the
		// partial directory is removed here rather than in the cleanup stage.
		_ = os.RemoveAll(dir)
		return "", err
	}

	slog.Debug("archive extracted", "archive", archivePath, "dir", dir)
	return dir, nil
}

// Cleanup removes an extraction directory produced by Extract.
// Safe to call with an empty path.
func Cleanup(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeCleanup,
			"failed to remove extraction directory", err,
			map[string]any{"dir": dir})
	}
	return nil
}

// extractStream unpacks a tar stream (gzip-sniffed) from r into dir.
func extractStream(ctx context.Context, r io.Reader, dir string) error {
	br := bufio.NewReader(r)

	magic, err := br.Peek(len(gzipMagic))
	if err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, gzErr := gzip.NewReader(br)
		if gzErr != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to read compressed archive", gzErr)
		}
		defer func() { _ = gz.Close() }()
		return untar(ctx, gz, dir)
	}

	return untar(ctx, br, dir)
}

func untar(ctx context.Context, r io.Reader, dir string) error {
	tr := tar.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeCancelled, "extraction cancelled", err)
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to read image archive", err)
		}

		target, err := securePath(dir, hdr.Name)
		if err != nil {
			return err
		}
		if target == "" {
			// Entry resolved to the extraction root itself.
			continue
		}

		if err := writeEntry(tr, hdr, dir, target); err != nil {
			return err
		}
	}
}

// securePath joins name onto dir, rejecting entries that would escape it.
func securePath(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return "", nil
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || clean == ".." {
		return "", apperrors.NewWithContext(apperrors.ErrCodeExtraction,
			"archive entry escapes extraction directory",
			map[string]any{"entry": name})
	}
	return filepath.Join(dir, clean), nil
}

// secureLinkTarget rejects symlink targets that point outside the
// extraction directory. Targets are named relative to the entry's own
// directory, so they are resolved against it before the escape check;
// later entries written through an in-dir symlink therefore cannot land
// outside dir.
func secureLinkTarget(dir, name, linkname string) error {
	link := filepath.FromSlash(linkname)
	if filepath.IsAbs(link) {
		return apperrors.NewWithContext(apperrors.ErrCodeExtraction,
			"archive symlink escapes extraction directory",
			map[string]any{"entry": name, "target": linkname})
	}
	resolved := filepath.Join(filepath.Dir(filepath.FromSlash(name)), link)
	if _, err := securePath(dir, resolved); err != nil {
		return apperrors.NewWithContext(apperrors.ErrCodeExtraction,
			"archive symlink escapes extraction directory",
			map[string]any{"entry": name, "target": linkname})
	}
	return nil
}

func writeEntry(tr *tar.Reader, hdr *tar.Header, dir, target string) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()|0o700); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to create directory", err)
		}

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to create directory", err)
		}
		// O_TRUNC makes re-extraction over stale state idempotent.
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm()|0o400)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to create file", err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			_ = f.Close()
			return apperrors.WrapWithContext(apperrors.ErrCodeExtraction,
				"failed to write file", err,
				map[string]any{"entry": hdr.Name})
		}
		if err := f.Close(); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to close file", err)
		}

	case tar.TypeSymlink:
		if err := secureLinkTarget(dir, hdr.Name, hdr.Linkname); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to create directory", err)
		}
		_ = os.Remove(target)
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to create symlink", err)
		}

	case tar.TypeLink:
		// Hardlink targets are named relative to the archive root.
		linkSrc, err := securePath(dir, hdr.Linkname)
		if err != nil || linkSrc == "" {
			return apperrors.NewWithContext(apperrors.ErrCodeExtraction,
				"archive hardlink escapes extraction directory",
				map[string]any{"entry": hdr.Name})
		}
		_ = os.Remove(target)
		if err := os.Link(linkSrc, target); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeExtraction, "failed to create hard link", err)
		}

	default:
		slog.Debug("skipping unsupported archive entry",
			"entry", hdr.Name,
			"type", fmt.Sprintf("%c", hdr.Typeflag),
		)
	}

	return nil
}
