package version

import "fmt"

var (
	// Version is the semantic version of the manager build. It can be overridden via ldflags
	// and is recorded as the installed version of the manager's own catalog entry.
	Version = "0.3.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("lights-manager %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// UserAgent is sent with every GitHub request.
func UserAgent() string {
	return "lights-manager/" + Version
}
