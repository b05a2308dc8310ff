// Package version carries build information for the grasp binaries and
// for the run rows they write. Values are set with -ldflags -X.
package version

var (
	// Version is recorded on every run in grasp_runs.version.
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
