// Package cmd implements the CLI commands for a treesync server.
package cmd

import (
	"github.com/coniks-sys/treesync/cli"
)

// RootCmd represents the base "treesyncserver" command when called without any subcommands.
var RootCmd = cli.NewRootCommand("treesyncserver",
	"treesync server reference implementation in Go",
	`
 _                                        
| |_ _ __ ___  ___  ___ _   _ _ __   ___ 
| __| '__/ _ \/ _ \/ __| | | | '_ \ / __|
| |_| | |  __/  __/\__ \ |_| | | | | (__ 
 \__|_|  \___|\___||___/\__, |_| |_|\___|
                        |___/            
`)
