package cmd

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/coniks-sys/treesync/cli"
)

const help = "- deploy:\r\n" +
	"	Create the genesis tree and commit its root.\r\n" +
	"- increment [index] [delta]:\r\n" +
	"	Increment leaf [index] by [delta].\r\n" +
	"- status:\r\n" +
	"	Compare the committed root with the server's tree.\r\n" +
	"- enable timestamp:\r\n" +
	"	Print timestamp of format <15:04:05.999999999> along with the result.\r\n" +
	"- disable timestamp:\r\n" +
	"	Disable timestamp printing.\r\n" +
	"- help:\r\n" +
	"	Display this message.\r\n" +
	"- exit, q:\r\n" +
	"	Close the REPL and exit the client."

var runCmd = cli.NewRunCommand("treesync client",
	"Run gives you a REPL, so that you can invoke commands to update the shared tree. Currently, it supports:\n"+help, run)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("debug", "d", false, "Turn on debugging mode")
}

func run(cmd *cobra.Command, args []string) {
	isDebugging, _ := strconv.ParseBool(cmd.Flag("debug").Value.String())
	conf := loadConfigOrExit(cmd)
	s := newSessionOrExit(conf)

	state, err := terminal.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatal(err)
	}
	defer terminal.Restore(int(os.Stdin.Fd()), state)
	term := terminal.NewTerminal(os.Stdin, "treesync> ")
	for {
		line, err := term.ReadLine()
		if err != nil {
			writeLineInRawMode(term, err.Error(), isDebugging)
			return
		}

		args := strings.Fields(line)
		if len(args) < 1 {
			writeLineInRawMode(term, `[!] Type "help" for more information.`, isDebugging)
			continue
		}
		ctx := context.Background()

		switch args[0] {
		case "exit", "q":
			writeLineInRawMode(term, "[+] See ya.", isDebugging)
			return
		case "help":
			writeLineInRawMode(term, help, false) // turn off debugging mode for this command
		case "enable", "disable":
			if len(args) != 2 || args[1] != "timestamp" {
				writeLineInRawMode(term, "[!] Unrecognized command: "+line, isDebugging)
				continue
			}
			isDebugging = args[0] == "enable"
		case "deploy":
			reply(term, isDebugging)(s.deploy(ctx))
		case "increment":
			if len(args) != 3 {
				writeLineInRawMode(term, "[!] Incorrect number of args to increment.", isDebugging)
				continue
			}
			reply(term, isDebugging)(s.increment(ctx, args[1], args[2]))
		case "status":
			reply(term, isDebugging)(s.status(ctx))
		default:
			writeLineInRawMode(term, "[!] Unrecognized command: "+args[0], isDebugging)
		}
	}
}

func reply(term *terminal.Terminal, printTimestamp bool) func(string, error) {
	return func(msg string, err error) {
		if err != nil {
			writeLineInRawMode(term, "[!] Error: "+err.Error(), printTimestamp)
			return
		}
		writeLineInRawMode(term, "[+] "+strings.ReplaceAll(msg, "\n", "\r\n"), printTimestamp)
	}
}
