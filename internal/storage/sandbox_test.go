package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSandbox(t *testing.T) *Sandbox {
	t.Helper()

	sb, err := NewSandbox(filepath.Join(t.TempDir(), "media"))
	require.NoError(t, err)
	return sb
}

func writeTestFile(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0640))
}

func TestNewSandbox(t *testing.T) {
	tmpDir := t.TempDir()
	sandboxDir := filepath.Join(tmpDir, "media")

	sb, err := NewSandbox(sandboxDir)
	require.NoError(t, err)
	require.NotNil(t, sb)

	// Directory was created
	info, err := os.Stat(sandboxDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.True(t, filepath.IsAbs(sb.BaseDir()))
}

func TestSandbox_Resolve(t *testing.T) {
	sb := setupTestSandbox(t)

	inside := filepath.Join(sb.BaseDir(), "artist", "album", "track.flac")
	writeTestFile(t, inside)

	t.Run("file inside root", func(t *testing.T) {
		resolved, err := sb.Resolve(inside)
		require.NoError(t, err)
		assert.Equal(t, inside, resolved)
	})

	t.Run("dot segments normalize", func(t *testing.T) {
		dotty := filepath.Join(sb.BaseDir(), "artist", "..", "artist", "album", "track.flac")
		resolved, err := sb.Resolve(dotty)
		require.NoError(t, err)
		assert.Equal(t, inside, resolved)
	})

	t.Run("relative path rejected", func(t *testing.T) {
		_, err := sb.Resolve("artist/album/track.flac")
		assert.ErrorIs(t, err, ErrNotAbsolute)
	})

	t.Run("escape rejected", func(t *testing.T) {
		outside := filepath.Join(sb.BaseDir(), "..", "escape.flac")
		writeTestFile(t, filepath.Clean(outside))

		_, err := sb.Resolve(outside)
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := sb.Resolve(filepath.Join(sb.BaseDir(), "nope.flac"))
		require.Error(t, err)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})
}

func TestSandbox_ResolveSymlinks(t *testing.T) {
	sb := setupTestSandbox(t)

	target := filepath.Join(sb.BaseDir(), "real", "track.flac")
	writeTestFile(t, target)

	outsideDir := t.TempDir()
	secret := filepath.Join(outsideDir, "secret.flac")
	writeTestFile(t, secret)

	linkInside := filepath.Join(sb.BaseDir(), "link-inside.flac")
	if err := os.Symlink(target, linkInside); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	linkOutside := filepath.Join(sb.BaseDir(), "link-outside.flac")
	require.NoError(t, os.Symlink(secret, linkOutside))

	t.Run("link to inside resolves to target", func(t *testing.T) {
		resolved, err := sb.Resolve(linkInside)
		require.NoError(t, err)
		assert.Equal(t, target, resolved)
	})

	t.Run("link pointing out of root rejected", func(t *testing.T) {
		_, err := sb.Resolve(linkOutside)
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})
}

func TestSandbox_ResolveFile(t *testing.T) {
	sb := setupTestSandbox(t)

	inside := filepath.Join(sb.BaseDir(), "album", "track.flac")
	writeTestFile(t, inside)

	t.Run("regular file", func(t *testing.T) {
		resolved, info, err := sb.ResolveFile(inside)
		require.NoError(t, err)
		assert.Equal(t, inside, resolved)
		assert.Equal(t, int64(5), info.Size())
	})

	t.Run("directory refused", func(t *testing.T) {
		_, _, err := sb.ResolveFile(filepath.Join(sb.BaseDir(), "album"))
		assert.ErrorIs(t, err, ErrNotFile)
	})

	t.Run("outside root refused", func(t *testing.T) {
		_, _, err := sb.ResolveFile("/etc/passwd")
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})
}
