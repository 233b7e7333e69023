// Package version carries build metadata set through -ldflags, e.g.
//
//	go build -ldflags "-X github.com/chazu/joinery/internal/version.Version=0.3.0"
package version

import "fmt"

var (
	// Version is the semantic version of the binary.
	Version = "0.1.0-dev"

	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"

	// BuildDate is when the binary was built.
	BuildDate = "unknown"
)

// String renders all build metadata on one line.
func String() string {
	return fmt.Sprintf("joinery %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
