// Package cmd implements the CLI commands for a treesync client.
package cmd

import (
	"github.com/coniks-sys/treesync/cli"
)

// RootCmd represents the base "treesyncclient" command when called without any
// subcommands (increment, status, ...).
var RootCmd = cli.NewRootCommand("treesyncclient",
	"treesync client reference implementation in Go",
	`Increment leaves of a shared Merkle tree whose root is committed
on chain, and keep the server's copy of the tree in sync with it.`)
