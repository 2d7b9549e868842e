// Package version provides build-time version information.
//
// Set at build time via:
//
//	go build -ldflags "-X github.com/mfateev/temporal-mirror-agent/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import "fmt"

// Version is the release version.
var Version = "0.1.0"

// GitCommit is the short git commit hash, set at build time via ldflags.
var GitCommit = "dev"

// String returns the version and commit for display.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
