package version

import (
	"fmt"
	"runtime"
)

// Set at build time through -ldflags, e.g.
//
//	go build -ldflags "-X go-killtracker/pkg/version.Version=1.2.3 \
//	  -X go-killtracker/pkg/version.GitCommit=$(git rev-parse HEAD) \
//	  -X go-killtracker/pkg/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info bundles the build metadata exposed on the health endpoint.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetVersionString formats the version with an abbreviated commit hash,
// e.g. "1.2.3 (a1b2c3d)". Without commit information it is just the version.
func GetVersionString() string {
	commit := GitCommit
	if commit == "unknown" {
		return Version
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", Version, commit)
}
