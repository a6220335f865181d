package cmd

import (
	"github.com/coniks-sys/treesync/cli"
)

var versionCmd = cli.NewVersionCommand("treesyncclient")

func init() {
	RootCmd.AddCommand(versionCmd)
}
