// Package storage provides sandboxed file access for audarr.
// Track registration paths are confined to the configured media root to
// prevent path traversal into the rest of the filesystem.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotAbsolute is returned when a registration path is relative.
	ErrNotAbsolute = errors.New("path is not absolute")

	// ErrOutsideRoot is returned when a path resolves outside the media root.
	ErrOutsideRoot = errors.New("path escapes media root")

	// ErrNotFile is returned when a path resolves to something other than a
	// regular file.
	ErrNotFile = errors.New("path is not a regular file")
)

// Sandbox confines file access to a base directory. All checks run against
// the symlink-resolved form of both the base and the candidate path, so a
// link inside the root cannot point out of it.
type Sandbox struct {
	baseDir string
}

// NewSandbox roots a sandbox at baseDir, creating the directory when
// missing.
func NewSandbox(baseDir string) (*Sandbox, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("absolutizing %s: %w", baseDir, err)
	}

	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}

	// The root itself may sit behind a symlink (common for temp dirs);
	// containment checks need its canonical form.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}

	return &Sandbox{baseDir: resolved}, nil
}

// BaseDir returns the canonical path to the sandbox base directory.
func (s *Sandbox) BaseDir() string {
	return s.baseDir
}

// Resolve validates an absolute path against the sandbox and returns its
// canonical form. The file must exist; symlinks are resolved before the
// containment check.
func (s *Sandbox) Resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s", ErrNotAbsolute, path)
	}

	resolved, err := filepath.EvalSymlinks(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	if !s.contains(resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return resolved, nil
}

// ResolveFile validates an absolute path the way Resolve does and stats the
// result. Anything but a regular file is refused.
func (s *Sandbox) ResolveFile(path string) (string, os.FileInfo, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, fmt.Errorf("stat %s: %w", resolved, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFile, path)
	}

	return resolved, info, nil
}

// contains reports whether a canonical path lies within the base directory.
func (s *Sandbox) contains(path string) bool {
	return path == s.baseDir || strings.HasPrefix(path, s.baseDir+string(filepath.Separator))
}
