// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Set at build time with -ldflags "-X github.com/rshade/guildsweep/pkg/version.version=...".
//
//nolint:gochecknoglobals // ldflags targets must be package variables.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// GetVersion returns the semantic version of the build.
func GetVersion() string {
	return version
}

// GetCommit returns the git commit of the build.
func GetCommit() string {
	return commit
}

// String returns the version with commit and build date.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}
