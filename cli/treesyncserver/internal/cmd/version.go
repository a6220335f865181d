package cmd

import (
	"github.com/coniks-sys/treesync/cli"
)

var versionCmd = cli.NewVersionCommand("treesyncserver")

func init() {
	RootCmd.AddCommand(versionCmd)
}
