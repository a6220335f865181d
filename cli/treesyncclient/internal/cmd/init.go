package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coniks-sys/treesync/application/client"
	"github.com/coniks-sys/treesync/cli"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/utils"
)

var initCmd = cli.NewInitCommand("treesync client", mkConfigOrExit)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("key", "k", "",
		"Signing key to use; a new key pair is generated if empty")
	initCmd.Flags().StringP("address", "a", "unix:///tmp/treesync.sock",
		"Address of the treesync server")
}

func mkConfigOrExit(cmd *cobra.Command, args []string) {
	dir := cli.InitDir(cmd)
	keyPath := cmd.Flag("key").Value.String()
	addr := cmd.Flag("address").Value.String()

	if keyPath == "" {
		keyPath = "client.priv"
		if err := mkSigningKey(dir); err != nil {
			fmt.Println("Couldn't create signing key. Error message: [" +
				err.Error() + "]")
			os.Exit(-1)
		}
	}

	conf := client.NewConfig(filepath.Join(dir, "config.toml"), "toml", keyPath, addr)
	if err := conf.Save(); err != nil {
		fmt.Println("Couldn't save config. Error message: [" +
			err.Error() + "]")
		os.Exit(-1)
	}
}

func mkSigningKey(dir string) error {
	sk, err := sign.GenerateKey(nil)
	if err != nil {
		return err
	}
	pk, _ := sk.Public()
	if err := utils.WriteFile(filepath.Join(dir, "client.priv"), sk, 0600); err != nil {
		return err
	}
	return utils.WriteFile(filepath.Join(dir, "client.pub"), pk, 0600)
}
