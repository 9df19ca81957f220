// Package version resolves the build's identity once at startup: an -ldflags
// override wins, then the VCS revision stamped into debug.BuildInfo, then the
// literal "dev" for test and non-git builds.
package version

import "runtime/debug"

// AppName prefixes every version string the engine emits.
const AppName = "sloengine"

// commitOverride can be injected at build time,
//
//	go build -ldflags "-X .../pkg/version.commitOverride=$(git rev-parse HEAD)"
//
// for container builds where the .git directory is not in the build context.
var commitOverride string

// Commit is the short revision this binary was built from.
var Commit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return shorten(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shorten(s.Value)
			}
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "sloengine/<commit>", the form used in logs and user agents.
func Full() string {
	return AppName + "/" + Commit
}
