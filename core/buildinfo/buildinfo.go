// Package buildinfo exposes build metadata injected via ldflags.
package buildinfo

var (
	// Version is the semantic version of the build, "dev" when unset.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// Date is the UTC build timestamp.
	Date = "unknown"
)
