// Package misc keeps build identification helpers in a single place so they
// can be overwritten during release builds with -ldflags.
package misc

import "runtime/debug"

var (
	appName = "epx"
	version = "development"
	gitHash = ""
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns VCS revision recorded in build info unless it was set
// explicitly at link time.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				if len(s.Value) > 8 {
					return s.Value[:8]
				}
				return s.Value
			}
		}
	}
	return "unknown"
}
