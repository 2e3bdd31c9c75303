package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/NVIDIA/ocipush/pkg/errors"
)

func TestParse(t *testing.T) {
	tk := Task{
		ArchivePath: " app.tar ",
		Registry:    "localhost:5000",
		Repository:  "team/app",
		Tags:        "latest, v1;v2",
		PlainHTTP:   "true",
	}

	in, err := tk.Parse()
	require.NoError(t, err)
	assert.Equal(t, "app.tar", in.ArchivePath)
	assert.Equal(t, "localhost:5000", in.Registry)
	assert.Equal(t, "team/app", in.Repository)
	assert.Equal(t, []string{"latest", "v1", "v2"}, in.Tags)
	assert.True(t, in.PlainHTTP)
	assert.False(t, in.InsecureTLS)
}

func TestParseEmptyOptionalFields(t *testing.T) {
	in, err := Task{ArchivePath: "a.tar", Registry: "r.io"}.Parse()
	require.NoError(t, err)
	assert.Empty(t, in.Repository)
	assert.Nil(t, in.Tags)
	assert.False(t, in.PlainHTTP)
}

func TestParseRejectsEmptyTagEntries(t *testing.T) {
	for _, raw := range []string{"latest,,v1", ",latest", "latest;", " , "} {
		t.Run(raw, func(t *testing.T) {
			_, err := Task{ArchivePath: "a.tar", Registry: "r.io", Tags: raw}.Parse()
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.CodeOf(err))
		})
	}
}

func TestParseRejectsBadBool(t *testing.T) {
	_, err := Task{ArchivePath: "a.tar", Registry: "r.io", PlainHTTP: "yes please"}.Parse()
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.CodeOf(err))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvArchivePath, "build/app.tar")
	t.Setenv(EnvRegistry, "ghcr.io")
	t.Setenv(EnvTags, "latest")
	t.Setenv(EnvInsecureTLS, "true")

	tk := FromEnv()
	in, err := tk.Parse()
	require.NoError(t, err)
	assert.Equal(t, "build/app.tar", in.ArchivePath)
	assert.Equal(t, "ghcr.io", in.Registry)
	assert.Equal(t, []string{"latest"}, in.Tags)
	assert.True(t, in.InsecureTLS)
}

func TestRunInvalidTaskExitsNonZero(t *testing.T) {
	code := Task{Tags: ",,"}.Run(context.Background())
	assert.Equal(t, 1, code)
}
