// Package buildinfo exposes version metadata stamped at link time.
//
// Release builds inject these variables with -ldflags; a plain
// `go build` reports the dev defaults plus whatever the runtime knows.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// Set at link time via -ldflags "-X ...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

// Name is the canonical binary name used in banners and user agents.
const Name = "memorytest"

// String returns a one-line human-readable version description.
func String() string {
	return fmt.Sprintf("%s %s (%s@%s, built %s)", Name, Version, GitCommit, GitBranch, BuildTime)
}

// UserAgent returns the User-Agent value for outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Name, Version)
}

// Uptime reports how long this process has been running.
func Uptime() time.Duration {
	return time.Since(startTime).Round(time.Second)
}

// BuildInfo returns the link-time metadata as a JSON-friendly map.
func BuildInfo() map[string]string {
	return map[string]string{
		"name":       Name,
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
	}
}

// RuntimeInfo returns process-level details for the version endpoint.
func RuntimeInfo() map[string]any {
	return map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"goroutines": runtime.NumGoroutine(),
		"uptime":     Uptime().String(),
	}
}
