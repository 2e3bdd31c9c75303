package oci

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
)

func manifestDesc(t *testing.T, refName string) ociv1.Descriptor {
	t.Helper()

	desc := ociv1.Descriptor{
		MediaType: ociv1.MediaTypeImageManifest,
		Digest:    digest.FromString(refName),
		Size:      1234,
	}
	if refName != "" {
		desc.Annotations = map[string]string{ociv1.AnnotationRefName: refName}
	}
	return desc
}

func validIndex(t *testing.T, refNames ...string) *ociv1.Index {
	t.Helper()

	idx := &ociv1.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ociv1.MediaTypeImageIndex,
	}
	for _, ref := range refNames {
		idx.Manifests = append(idx.Manifests, manifestDesc(t, ref))
	}
	return idx
}

func writeIndex(t *testing.T, dir string, idx *ociv1.Index) {
	t.Helper()

	data, err := json.Marshal(idx)
	if err != nil {
		t.Fatalf("failed to marshal index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, indexFile), data, 0o644); err != nil {
		t.Fatalf("failed to write index: %v", err)
	}
}

func TestLoadIndex(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir, validIndex(t, "image:latest", "image:v1"))

	idx, err := LoadIndex(dir)
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if idx.SchemaVersion != 2 {
		t.Errorf("SchemaVersion = %d, want 2", idx.SchemaVersion)
	}
	if len(idx.Manifests) != 2 {
		t.Errorf("len(Manifests) = %d, want 2", len(idx.Manifests))
	}
	if got := idx.Manifests[0].Annotations[ociv1.AnnotationRefName]; got != "image:latest" {
		t.Errorf("first ref-name = %q, want image:latest", got)
	}
}

func TestLoadIndexFailures(t *testing.T) {
	tests := []struct {
		name string
		seed func(t *testing.T, dir string)
	}{
		{
			name: "missing file",
			seed: func(t *testing.T, dir string) {},
		},
		{
			name: "malformed json",
			seed: func(t *testing.T, dir string) {
				if err := os.WriteFile(filepath.Join(dir, indexFile), []byte("{not json"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "unreadable file",
			seed: func(t *testing.T, dir string) {
				if err := os.Mkdir(filepath.Join(dir, indexFile), 0o755); err != nil {
					t.Fatal(err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.seed(t, dir)

			_, err := LoadIndex(dir)
			if err == nil {
				t.Fatal("LoadIndex() expected error")
			}
			if got := apperrors.CodeOf(err); got != apperrors.ErrCodeIndexLoad {
				t.Errorf("error code = %s, want %s", got, apperrors.ErrCodeIndexLoad)
			}
			var se *apperrors.StructuredError
			if !apperrors.As(err, &se) {
				t.Fatal("expected StructuredError")
			}
			if se.Message != indexLoadMsg {
				t.Errorf("message = %q, want %q", se.Message, indexLoadMsg)
			}
		})
	}
}

func TestValidateIndex(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(idx *ociv1.Index)
		wantErr bool
	}{
		{
			name:   "valid index",
			mutate: func(idx *ociv1.Index) {},
		},
		{
			name:    "wrong schema version",
			mutate:  func(idx *ociv1.Index) { idx.SchemaVersion = 1 },
			wantErr: true,
		},
		{
			name:    "wrong media type",
			mutate:  func(idx *ociv1.Index) { idx.MediaType = "application/vnd.docker.distribution.manifest.list.v2+json" },
			wantErr: true,
		},
		{
			name:    "empty media type",
			mutate:  func(idx *ociv1.Index) { idx.MediaType = "" },
			wantErr: true,
		},
		{
			name:    "malformed digest",
			mutate:  func(idx *ociv1.Index) { idx.Manifests[0].Digest = "sha256:nothex" },
			wantErr: true,
		},
		{
			name:    "negative size",
			mutate:  func(idx *ociv1.Index) { idx.Manifests[0].Size = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := validIndex(t, "image:latest")
			tt.mutate(idx)

			err := ValidateIndex(idx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateIndex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got := apperrors.CodeOf(err); got != apperrors.ErrCodeFormat {
					t.Errorf("error code = %s, want %s", got, apperrors.ErrCodeFormat)
				}
			}
		})
	}
}

func TestValidateIndexNil(t *testing.T) {
	if err := ValidateIndex(nil); err == nil {
		t.Error("ValidateIndex(nil) expected error")
	}
}
