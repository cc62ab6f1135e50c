// Command gkgd is the knowledge-graph indexing daemon: it serves the spec
// §6 HTTP query surface and keeps every registered workspace's graph store
// current via the file watcher (C7). It can also be driven as a one-shot
// CLI for indexing and workspace management without starting the server.
package main

import (
	"fmt"
	"os"

	"github.com/gkg/knowledgegraph/cmd/gkgd/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
