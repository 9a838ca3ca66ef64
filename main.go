// Command checkpoint periodically snapshots host metrics and directory file statistics to a static HTML page.
package main

import (
	"fmt"
	"os"

	"github.com/idelchi/checkpoint/internal/cli"
)

// Will be set by the linker.
//
//nolint:gochecknoglobals // Set at build time
var version = "unknown - unofficial & generated by unknown"

func main() {
	if err := cli.New(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
