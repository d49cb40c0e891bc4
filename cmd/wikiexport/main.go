package main

import "github.com/quartzlabs/wikiexport/internal/cmd"

// Populated via -ldflags at release build time.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	cmd.Execute()
}
