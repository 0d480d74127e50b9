// Package util provides shared utility functions.
package util

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ResolveBinary resolves a configured tool location to an executable path.
// An explicit path (anything with a directory component) is verified
// directly and never searched. A bare name checks the working directory
// first, so development builds can drop ffmpeg or ffprobe next to the
// server binary, then falls back to PATH.
func ResolveBinary(loc string) (string, error) {
	if filepath.Base(loc) != loc {
		if !isExecutable(loc) {
			return "", fmt.Errorf("binary %s is not an executable file", loc)
		}
		return loc, nil
	}

	if local := "./" + loc; isExecutable(local) {
		return local, nil
	}

	if path, err := exec.LookPath(loc); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("binary %s not found", loc)
}

// isExecutable reports whether path is a regular file with any of the
// owner, group, or other execute bits set.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode()&0111 != 0
}
