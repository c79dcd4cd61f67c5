// Package version carries build metadata stamped in via ldflags.
package version

var (
	// Version is the release version of the binary.
	Version = "0.0.0"

	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"

	// BuildDate is the UTC timestamp of the build.
	BuildDate = "unknown"
)
