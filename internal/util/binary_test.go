package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBinary(t *testing.T) {
	t.Run("resolves an explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake-ffmpeg")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))

		resolved, err := ResolveBinary(path)
		require.NoError(t, err)
		assert.Equal(t, path, resolved)
	})

	t.Run("rejects a path to a non-executable file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake-ffmpeg")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0644))

		resolved, err := ResolveBinary(path)
		assert.Error(t, err)
		assert.Empty(t, resolved)
		assert.Contains(t, err.Error(), "not an executable file")
	})

	t.Run("rejects a path to a directory", func(t *testing.T) {
		resolved, err := ResolveBinary(t.TempDir())
		assert.Error(t, err)
		assert.Empty(t, resolved)
	})

	t.Run("finds a bare name on PATH", func(t *testing.T) {
		// ls is present on every platform the service targets.
		resolved, err := ResolveBinary("ls")
		require.NoError(t, err)
		assert.NotEmpty(t, resolved)
		assert.Contains(t, resolved, "ls")
	})

	t.Run("prefers the working directory for a bare name", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "audarr-probe-tool"), []byte("#!/bin/sh\n"), 0755))
		t.Chdir(dir)

		resolved, err := ResolveBinary("audarr-probe-tool")
		require.NoError(t, err)
		assert.Equal(t, "./audarr-probe-tool", resolved)
	})

	t.Run("returns an error for an unknown name", func(t *testing.T) {
		resolved, err := ResolveBinary("audarr-no-such-tool")
		assert.Error(t, err)
		assert.Empty(t, resolved)
		assert.Contains(t, err.Error(), "not found")
	})
}
