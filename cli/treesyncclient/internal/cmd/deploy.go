package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coniks-sys/treesync/crypto"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create the genesis tree and commit its root.",
	Long: `Create the genesis tree on the server and commit its root on chain.

The genesis tree holds 111 at leaf 10. Deploying twice fails: the
commitment can only be initialized once.`,
	Run: deploy,
}

func init() {
	RootCmd.AddCommand(deployCmd)
}

func deploy(cmd *cobra.Command, args []string) {
	conf := loadConfigOrExit(cmd)
	s := newSessionOrExit(conf)
	msg, err := s.deploy(context.Background())
	if err != nil {
		fmt.Println("Error: " + err.Error())
		os.Exit(-1)
	}
	fmt.Println(msg)
}

func (s *session) deploy(ctx context.Context) (string, error) {
	if _, err := s.remote.InitTree(ctx, nil); err != nil {
		return "", err
	}
	res, err := s.orch.Initialize(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Committed genesis root %s in block %d",
		crypto.ElementString(res.NewRoot), res.Block), nil
}
