//go:build go1.18

package version

import (
	"runtime/debug"
	"strings"
)

func init() {
	fixBuild = buildInfoFixBuild
}

// buildInfoFixBuild replaces an unexpanded Build field with the VCS
// revision recorded by the toolchain.
func buildInfoFixBuild(v *Version) {
	if !strings.HasPrefix(v.Build, "$Id") {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, key := range []string{"vcs.revision", "gitrevision"} {
		for i := range info.Settings {
			if info.Settings[i].Key == key {
				v.Build = info.Settings[i].Value
				return
			}
		}
	}
}
