// Command trustval validates signatures described by diagnostic data and
// writes the simple, detailed and ETSI validation reports.
//
// Usage:
//
//	trustval <command> [options] <args>
//
// Commands:
//
//	validate  Validate the signatures of a diagnostic data file
//	version   Show version information
//	help      Show help message
//
// Examples:
//
//	# Validate at the archival level with the built-in policy
//	trustval validate diagnostic.json
//
//	# Validate with a policy and a trusted list analysis, as XML
//	trustval validate --policy policy.yaml --trusted-lists tl.json --format xml diagnostic.json
//
//	# Print the simple report only
//	trustval validate --format text --level basic-signatures diagnostic.json
package main

import (
	"os"

	"github.com/georgepadayatti/trustval/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/trustval
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Set version info
	cli.Version = version
	cli.BuildTime = buildTime

	// Run the CLI
	cli.Run(os.Args)
}
