package cmd

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coniks-sys/treesync/application"
	"github.com/coniks-sys/treesync/application/server"
	"github.com/coniks-sys/treesync/application/testutil"
	"github.com/coniks-sys/treesync/cli"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/utils"
	"github.com/coniks-sys/treesync/zkproof"
)

const proofKeysDir = "proofs"

// initCmd represents the init command
var initCmd = cli.NewInitCommand("treesync server", initRunFunc)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("cert", false, "Generate self-signed ssl keys/cert with sane defaults")
	initCmd.Flags().BoolP("proofs", "p", false, "Run the proof system setup and require proofs of updates")
}

func initRunFunc(cmd *cobra.Command, args []string) {
	dir := cli.InitDir(cmd)
	cert, _ := strconv.ParseBool(cmd.Flag("cert").Value.String())
	proofs, _ := strconv.ParseBool(cmd.Flag("proofs").Value.String())

	mkConfig(dir, cert, proofs)
	mkSigningKey(dir)
	if cert {
		if err := testutil.CreateTLSCert(dir); err != nil {
			log.Println(err)
		}
	}
	if proofs {
		mkProofKeys(dir)
	}
}

func mkConfig(dir string, tcp, proofs bool) {
	file := filepath.Join(dir, "config.toml")
	addrs := []*server.Address{
		{
			ServerAddress: &application.ServerAddress{
				Address: "unix:///tmp/treesync.sock",
			},
			AllowWrite: true,
		},
	}
	if tcp {
		addrs = append(addrs, &server.Address{
			ServerAddress: &application.ServerAddress{
				Address:     "tcp://0.0.0.0:3000",
				TLSCertPath: "server.pem",
				TLSKeyPath:  "server.key",
			},
		})
	}
	logger := &application.LoggerConfig{
		EnableStacktrace: true,
		Environment:      "development",
		Path:             "treesyncserver.log",
	}
	storage := &server.StorageConfig{
		Backend: "leveldb",
		Path:    "treesync.db",
	}
	var proofKeys string
	if proofs {
		proofKeys = proofKeysDir
	}
	policies := server.NewPolicies(protocol.DefaultPolicies(),
		server.DefaultBlockInterval, []string{"sign.pub"}, proofKeys)

	conf := server.NewConfig(file, "toml", addrs, logger, storage, policies)
	conf.MetricsAddress = "127.0.0.1:9100"
	if err := conf.Save(); err != nil {
		log.Println(err)
	}
}

func mkSigningKey(dir string) {
	sk, err := sign.GenerateKey(nil)
	if err != nil {
		log.Print(err)
		return
	}
	pk, _ := sk.Public()
	if err := utils.WriteFile(filepath.Join(dir, "sign.priv"), sk, 0600); err != nil {
		log.Println(err)
		return
	}
	if err := utils.WriteFile(filepath.Join(dir, "sign.pub"), pk, 0600); err != nil {
		log.Println(err)
		return
	}
}

func mkProofKeys(dir string) {
	keysDir := filepath.Join(dir, proofKeysDir)
	if err := os.MkdirAll(keysDir, 0700); err != nil {
		log.Println(err)
		return
	}
	sys, err := zkproof.Setup(protocol.DefaultPolicies())
	if err != nil {
		log.Println(err)
		return
	}
	if err := sys.SaveKeys(keysDir); err != nil {
		log.Println(err)
	}
}
