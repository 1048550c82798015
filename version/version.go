// Package version holds build metadata injected at link time.
package version

// These are set via -ldflags at build time.
var (
	// GitRelease is the release tag or short commit hash.
	GitRelease = "dev"

	// GitCommit is the full commit hash.
	GitCommit = ""

	// BuildTime is the UTC build timestamp.
	BuildTime = ""
)
