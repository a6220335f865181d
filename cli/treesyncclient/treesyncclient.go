// Executable treesync client. It increments leaves of the shared tree
// through a treesync server.
package main

import (
	"github.com/coniks-sys/treesync/cli"
	"github.com/coniks-sys/treesync/cli/treesyncclient/internal/cmd"
)

func main() {
	cli.Execute(cmd.RootCmd)
}
