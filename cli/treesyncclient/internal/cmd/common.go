package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/coniks-sys/treesync/application/client"
	"github.com/coniks-sys/treesync/cli"
	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/protocol"
	pclient "github.com/coniks-sys/treesync/protocol/client"
)

const configMissingUsage = `
Couldn't load client's config-file.

To create a valid config, first, run
  treesyncserver init
if you haven't done this already. This will create a valid server configuration
and a signing key pair registered as an account (by default in sign.priv and sign.pub).
Then, run
  treesyncclient init --key /path/to/sign.priv
this creates a toml file which references this key.

The client looks for a file called 'config.toml' in its current working directory.
If you prefer the config-file to be named or stored somewhere different you can
specify where to look for the config with the --config flag. For example:
 treesyncclient status --config /etc/treesync/client.toml
`

func loadConfigOrExit(cmd *cobra.Command) *client.Config {
	config := cli.ConfigPath(cmd)
	conf := &client.Config{}
	if err := conf.Load(config, "toml"); err != nil {
		fmt.Println(err)
		fmt.Print(configMissingUsage)
		os.Exit(-1)
	}
	return conf
}

// session is a remote connection to a treesync server together with
// the orchestrator driving it.
type session struct {
	remote *client.Remote
	orch   *pclient.Orchestrator
}

func newSessionOrExit(conf *client.Config) *session {
	tlsConfig, err := conf.TLSConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
	remote, err := client.NewRemote(conf.Address, conf.Policies, tlsConfig)
	if err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
	signer := &pclient.KeySigner{
		ChainID: protocol.ChainID(conf.Policies),
		Key:     conf.SigningKey,
	}
	orch, err := pclient.New(conf.Policies, remote, remote, signer, conf.Orchestrator)
	if err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
	if p := conf.Prover(); p != nil {
		orch.SetProver(p)
	}
	return &session{remote: remote, orch: orch}
}

func formatResult(res *pclient.Result) string {
	msg := fmt.Sprintf("Leaf %d: %s -> %s, root %s (block %d)",
		res.Index, crypto.ElementString(res.Before), crypto.ElementString(res.After),
		crypto.ElementString(res.NewRoot), res.Block)
	if res.SyncErr != nil {
		msg += "\nThe update is committed but the server's tree couldn't be updated: " +
			res.SyncErr.Error()
	}
	return msg
}

func formatReport(r *pclient.Report) string {
	if !r.Initialized {
		return "Commitment isn't initialized. Server tree root: " +
			crypto.ElementString(r.StoreRoot)
	}
	state := "in sync"
	if !r.InSync {
		state = "OUT OF SYNC"
	}
	return fmt.Sprintf("Commitment: %s\nServer tree: %s\n(%s)",
		crypto.ElementString(r.ChainRoot), crypto.ElementString(r.StoreRoot), state)
}

// append "\r\n" to msg and then write to terminal in raw mode.
func writeLineInRawMode(term *terminal.Terminal, msg string, printTimestamp bool) {
	if printTimestamp {
		term.Write([]byte("<" + time.Now().Format("15:04:05.999999999") + "> "))
	}
	term.Write([]byte(msg + "\r\n"))
}
