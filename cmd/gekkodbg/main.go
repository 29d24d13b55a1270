package main

import (
	"os"

	"github.com/gekkodbg/gekkodbg/cmd/gekkodbg/cmds"
	"github.com/gekkodbg/gekkodbg/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.GekkodbgVersion.Build = Build
	}
	if err := cmds.New(false).Execute(); err != nil {
		os.Exit(1)
	}
}
