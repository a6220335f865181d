// Executable treesync server. It serves the sync store and the
// commitment ledger over unix sockets and TLS.
package main

import (
	"github.com/coniks-sys/treesync/cli"
	"github.com/coniks-sys/treesync/cli/treesyncserver/internal/cmd"
)

func main() {
	cli.Execute(cmd.RootCmd)
}
