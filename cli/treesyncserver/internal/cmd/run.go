package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coniks-sys/treesync/application/server"
	"github.com/coniks-sys/treesync/cli"
)

// runCmd represents the run command
var runCmd = cli.NewRunCommand("treesync server",
	`Run a treesync server instance.

This will look for config files with default names
in the current directory if not specified differently.
	`, run)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("pid", "p", false, "Write down the process id to treesync.pid in the current working directory")
}

func run(cmd *cobra.Command, args []string) {
	confPath := cli.ConfigPath(cmd)
	pid, _ := strconv.ParseBool(cmd.Flag("pid").Value.String())
	// ignore the error here since it is handled by the flag parser.
	if pid {
		writePID()
	}

	conf := &server.Config{}
	if err := conf.Load(confPath, "toml"); err != nil {
		log.Fatal(err)
	}
	serv, err := server.NewTreeSyncServer(conf)
	if err != nil {
		log.Fatal(err)
	}

	// run the server until receiving an interrupt signal
	serv.Run()
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	if err := serv.Shutdown(); err != nil {
		log.Println(err)
	}
}

func writePID() {
	pidf, err := os.OpenFile(filepath.Join(".", "treesync.pid"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		log.Printf("Cannot create treesync.pid: %v", err)
		return
	}
	defer pidf.Close()
	if _, err := fmt.Fprint(pidf, os.Getpid()); err != nil {
		log.Printf("Cannot write to pid file: %v", err)
	}
}
