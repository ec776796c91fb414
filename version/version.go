// Package version holds build metadata injected via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag, "unknown" for untagged builds.
	Version = "unknown"
	// Revision is the git commit hash.
	Revision = "unknown"
	// BuiltAt is the build timestamp.
	BuiltAt = "unknown"
)

// String renders the multi-line version banner.
func String() string {
	return fmt.Sprintf("sealvm %s\nGit: %s\nBuilt: %s\nGo: %s",
		Version, Revision, BuiltAt, runtime.Version())
}
