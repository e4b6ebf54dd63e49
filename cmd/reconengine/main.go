// Command reconengine is a TCP connect reconnaissance engine: it resolves a
// single IPv4 target, probes its ports in fixed-size batches and reports each
// port as open, closed or filtered.
package main

import "github.com/cyberdash/reconengine/cmd/cli"

// Build information, set via -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
