// serialmock emulates a serial device from a repeat file of ask/answer pairs.
package main

import "github.com/getmockd/serialmock/pkg/cli"

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}
