package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func buildTar(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		flag := e.typeflag
		if flag == 0 {
			flag = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.body)),
			Typeflag: flag,
			Linkname: e.linkname,
		}
		if flag == tar.TypeDir {
			hdr.Mode = 0o755
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write tar header: %v", err)
		}
		if flag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("failed to write tar body: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "image.tar")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	return path
}

func TestExtract(t *testing.T) {
	data := buildTar(t, []tarEntry{
		{name: "blobs/", typeflag: tar.TypeDir},
		{name: "blobs/sha256/", typeflag: tar.TypeDir},
		{name: "blobs/sha256/abc", body: "layer-bytes"},
		{name: "index.json", body: `{"schemaVersion":2}`},
		{name: "oci-layout", body: `{"imageLayoutVersion":"1.0.0"}`},
	})
	path := writeArchive(t, data)

	dir, err := Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	t.Cleanup(func() { _ = Cleanup(dir) })

	if !strings.HasPrefix(filepath.Base(dir), dirPrefix) {
		t.Errorf("extraction dir %q does not carry prefix %q", dir, dirPrefix)
	}

	got, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatalf("index.json missing after extraction: %v", err)
	}
	if string(got) != `{"schemaVersion":2}` {
		t.Errorf("index.json content = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "blobs", "sha256", "abc")); err != nil {
		t.Errorf("blob missing after extraction: %v", err)
	}
}

func TestExtractGzip(t *testing.T) {
	data := buildTar(t, []tarEntry{
		{name: "index.json", body: `{"schemaVersion":2}`},
	})

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		t.Fatalf("failed to gzip archive: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	path := writeArchive(t, buf.Bytes())

	dir, err := Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	t.Cleanup(func() { _ = Cleanup(dir) })

	if _, err := os.Stat(filepath.Join(dir, "index.json")); err != nil {
		t.Errorf("index.json missing after gzip extraction: %v", err)
	}
}

func TestExtractMissingArchive(t *testing.T) {
	_, err := Extract(context.Background(), filepath.Join(t.TempDir(), "absent.tar"))
	if err == nil {
		t.Fatal("Extract() expected error for missing archive")
	}
	if got := apperrors.CodeOf(err); got != apperrors.ErrCodeExtraction {
		t.Errorf("error code = %s, want %s", got, apperrors.ErrCodeExtraction)
	}
}

func TestExtractCorruptArchive(t *testing.T) {
	path := writeArchive(t, []byte("this is not a tar archive at all, padded to pass the header read"))

	_, err := Extract(context.Background(), path)
	if err == nil {
		t.Fatal("Extract() expected error for corrupt archive")
	}
	if got := apperrors.CodeOf(err); got != apperrors.ErrCodeExtraction {
		t.Errorf("error code = %s, want %s", got, apperrors.ErrCodeExtraction)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	data := buildTar(t, []tarEntry{
		{name: "../escape.txt", body: "outside"},
	})
	path := writeArchive(t, data)

	_, err := Extract(context.Background(), path)
	if err == nil {
		t.Fatal("Extract() expected error for traversal entry")
	}
	if got := apperrors.CodeOf(err); got != apperrors.ErrCodeExtraction {
		t.Errorf("error code = %s, want %s", got, apperrors.ErrCodeExtraction)
	}
}

func TestExtractRejectsSymlinkEscape(t *testing.T) {
	outside := t.TempDir()

	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{
			name: "absolute target",
			entries: []tarEntry{
				{name: "link", typeflag: tar.TypeSymlink, linkname: outside},
				{name: "link/escape.txt", body: "outside"},
			},
		},
		{
			name: "relative target above root",
			entries: []tarEntry{
				{name: "sub/link", typeflag: tar.TypeSymlink, linkname: "../../escape"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeArchive(t, buildTar(t, tc.entries))

			_, err := Extract(context.Background(), path)
			if err == nil {
				t.Fatal("Extract() expected error for escaping symlink")
			}
			if got := apperrors.CodeOf(err); got != apperrors.ErrCodeExtraction {
				t.Errorf("error code = %s, want %s", got, apperrors.ErrCodeExtraction)
			}
			if _, statErr := os.Stat(filepath.Join(outside, "escape.txt")); !os.IsNotExist(statErr) {
				t.Errorf("file written outside extraction dir: %v", statErr)
			}
		})
	}
}

func TestExtractAllowsInternalSymlink(t *testing.T) {
	data := buildTar(t, []tarEntry{
		{name: "blobs/", typeflag: tar.TypeDir},
		{name: "blobs/sha256/", typeflag: tar.TypeDir},
		{name: "blobs/sha256/abc", body: "layer-bytes"},
		{name: "latest", typeflag: tar.TypeSymlink, linkname: "blobs/sha256/abc"},
	})
	path := writeArchive(t, data)

	dir, err := Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	t.Cleanup(func() { _ = Cleanup(dir) })

	got, err := os.ReadFile(filepath.Join(dir, "latest"))
	if err != nil {
		t.Fatalf("failed to read through symlink: %v", err)
	}
	if string(got) != "layer-bytes" {
		t.Errorf("symlink content = %q", got)
	}
}

func TestExtractCancelled(t *testing.T) {
	data := buildTar(t, []tarEntry{
		{name: "index.json", body: `{"schemaVersion":2}`},
	})
	path := writeArchive(t, data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, path)
	if err == nil {
		t.Fatal("Extract() expected error for cancelled context")
	}
	if got := apperrors.CodeOf(err); got != apperrors.ErrCodeCancelled {
		t.Errorf("error code = %s, want %s", got, apperrors.ErrCodeCancelled)
	}
}

func TestCleanup(t *testing.T) {
	dir := filepath.Join(os.TempDir(), dirPrefix+"cleanup-test")
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		t.Fatalf("failed to seed dir: %v", err)
	}

	if err := Cleanup(dir); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("directory still present after Cleanup: %v", err)
	}

	// Empty path and already-removed dir are both no-ops.
	if err := Cleanup(""); err != nil {
		t.Errorf("Cleanup(\"\") error = %v", err)
	}
	if err := Cleanup(dir); err != nil {
		t.Errorf("Cleanup() on removed dir error = %v", err)
	}
}
