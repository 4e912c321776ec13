package go_ncmdump

import (
	"fmt"
	"runtime"
)

func VersionNumberString() string {
	// TODO: we probably want a commit hash for non-debug binaries
	return "dev"
}

func VersionString() string {
	return fmt.Sprintf("go-ncmdump %s", VersionNumberString())
}

func SystemInfoString() string {
	return fmt.Sprintf("%s; Go %s", VersionString(), runtime.Version())
}
