// Package version exposes build metadata stamped in via ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/audarr/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/audarr/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/audarr/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Stamped at build time. Version follows SemVer 2.0.0, Commit is the full
// git SHA and Date is RFC3339; the zero values identify a local dev build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ApplicationName names the binary in version lines and the User-Agent.
const ApplicationName = "audarr"

// Info is the build metadata as one marshalable value.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo snapshots the stamped variables together with the runtime the
// binary was built for.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// shortCommit returns the abbreviated commit SHA, or false when the build
// carries no usable commit.
func (i Info) shortCommit() (string, bool) {
	if i.Commit == "unknown" || len(i.Commit) < 8 {
		return "", false
	}
	return i.Commit[:8], true
}

// String renders the long, human-readable version line.
func (i Info) String() string {
	if sha, ok := i.shortCommit(); ok {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s on %s)",
			ApplicationName, i.Version, sha, i.Date, i.GoVersion, i.Platform)
	}
	return fmt.Sprintf("%s version %s (%s on %s)",
		ApplicationName, i.Version, i.GoVersion, i.Platform)
}

// Short renders the one-line form used for --version output.
func (i Info) Short() string {
	if sha, ok := i.shortCommit(); ok {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, i.Version, sha)
	}
	return fmt.Sprintf("%s %s", ApplicationName, i.Version)
}

// JSON renders the info as an indented JSON document.
func (i Info) JSON() string {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return fmt.Sprintf("{%q: %q}", "version", i.Version)
	}
	return string(data)
}

// UserAgent returns a User-Agent string for HTTP requests.
func UserAgent() string {
	return ApplicationName + "/" + Version
}
