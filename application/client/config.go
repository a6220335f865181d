package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/coniks-sys/treesync/application"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/protocol"
	pclient "github.com/coniks-sys/treesync/protocol/client"
	"github.com/coniks-sys/treesync/utils"
	"github.com/coniks-sys/treesync/zkproof"
)

// Config contains the client's configuration needed to talk to a
// treesync server: the server's address and, for TCP addresses, the
// certificate the server is trusted with; the path to the client's
// signing key and the actual key parsed from that file; the tree
// policies shared with the server; the polling bounds of the
// orchestrator and, optionally, the directory holding the keys of the
// succinct update proofs.
type Config struct {
	*application.CommonConfig

	Address        string `toml:"address"`
	ServerCertPath string `toml:"server_cert,omitempty"`

	SignKeyPath string          `toml:"sign_key_path"`
	SigningKey  sign.PrivateKey `toml:"-"`

	ProofKeysPath string `toml:"proof_keys,omitempty"`

	Policies     *protocol.Policies `toml:"policies"`
	Orchestrator *pclient.Config    `toml:"orchestrator"`

	prover *zkproof.System
}

var _ application.AppConfig = (*Config)(nil)

// NewConfig initializes a new client configuration at the
// given file path, with the given config encoding,
// signing key path and server address.
func NewConfig(file, encoding string, signKeyPath, serverAddr string) *Config {
	var conf = Config{
		CommonConfig: application.NewCommonConfig(file, encoding,
			&application.LoggerConfig{Environment: "production"}),
		Address:      serverAddr,
		SignKeyPath:  signKeyPath,
		Policies:     protocol.DefaultPolicies(),
		Orchestrator: pclient.DefaultConfig(),
	}

	return &conf
}

// Load initializes a client's configuration from the given file
// using the given encoding.
// It reads the signing key file and parses the actual key, and loads
// the proof keys if the configuration names them.
func (conf *Config) Load(file, encoding string) error {
	conf.CommonConfig = application.NewCommonConfig(file, encoding, nil)
	if err := conf.GetLoader().Decode(conf); err != nil {
		return err
	}
	if conf.Logger == nil {
		conf.Logger = &application.LoggerConfig{Environment: "production"}
	}
	conf.ResolveLoggerPath()
	if conf.Policies == nil {
		conf.Policies = protocol.DefaultPolicies()
	}
	conf.Policies.Version = protocol.Version
	if err := conf.Policies.Validate(); err != nil {
		return err
	}
	if conf.Orchestrator == nil {
		conf.Orchestrator = pclient.DefaultConfig()
	}
	if err := conf.Orchestrator.Validate(); err != nil {
		return err
	}

	// load signing key
	signKey, err := application.LoadSigningKey(conf.SignKeyPath, file)
	if err != nil {
		return err
	}
	conf.SigningKey = signKey

	if conf.ServerCertPath != "" {
		conf.ServerCertPath = utils.ResolvePath(conf.ServerCertPath, file)
	}
	if conf.ProofKeysPath != "" {
		sys, err := zkproof.LoadKeys(conf.Policies, utils.ResolvePath(conf.ProofKeysPath, file))
		if err != nil {
			return err
		}
		conf.prover = sys
	}
	return nil
}

// Save writes a client's configuration.
func (conf *Config) Save() error {
	return conf.GetLoader().Encode(conf)
}

// GetPath returns the client's configuration file path.
func (conf *Config) GetPath() string {
	return conf.Path
}

// Prover returns the prover loaded from the proof keys, or nil if the
// configuration names none.
func (conf *Config) Prover() pclient.Prover {
	if conf.prover == nil {
		return nil
	}
	return conf.prover
}

// TLSConfig returns the TLS configuration used for TCP addresses.
// If a server certificate is configured, it is the only one trusted.
func (conf *Config) TLSConfig() (*tls.Config, error) {
	if conf.ServerCertPath == "" {
		return &tls.Config{}, nil
	}
	pem, err := os.ReadFile(conf.ServerCertPath)
	if err != nil {
		return nil, fmt.Errorf("Cannot read server certificate: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("No certificate found in %s", conf.ServerCertPath)
	}
	return &tls.Config{RootCAs: pool}, nil
}
