// Package version reports build metadata. Release builds set the variables via ldflags;
// otherwise the VCS stamp recorded by the Go toolchain is used.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var fillOnce sync.Once

// String formats the build metadata for logs and -version output.
func String() string {
	fillOnce.Do(fillFromBuildInfo)
	return fmt.Sprintf("billsearch %s (commit %s, built %s)", Version, Commit, Date)
}

func fillFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "unknown":
			Commit = s.Value
		case s.Key == "vcs.time" && Date == "unknown":
			Date = s.Value
		}
	}
}
