package server

import (
	"time"

	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/utils"
	"github.com/coniks-sys/treesync/zkproof"
)

// DefaultBlockInterval is how often pending transactions are sealed
// when the configuration doesn't say.
const DefaultBlockInterval = 2 * time.Second

// Policies contains a server's treesync policies configuration:
// the tree shape, the block interval, the public keys of the accounts
// allowed to send transactions and the directory holding the keys of
// the succinct update proofs.
type Policies struct {
	*protocol.Policies
	BlockInterval time.Duration `toml:"block_interval"`
	// AccountKeyPaths lists public signing keys. If it is empty, any
	// sender is accepted.
	AccountKeyPaths []string `toml:"accounts,omitempty"`
	// ProofKeysPath is a directory written by zkproof.System.SaveKeys.
	// If it is empty, the contract doesn't accept proven updates.
	ProofKeysPath string `toml:"proof_keys,omitempty"`

	accounts []sign.PublicKey
	verifier *zkproof.System
}

// NewPolicies initializes a new Policies struct.
func NewPolicies(p *protocol.Policies, blockInterval time.Duration,
	accountKeyPaths []string, proofKeysPath string) *Policies {
	return &Policies{
		Policies:        p,
		BlockInterval:   blockInterval,
		AccountKeyPaths: accountKeyPaths,
		ProofKeysPath:   proofKeysPath,
	}
}

// load validates the policies and reads the keys they point to,
// resolving relative paths against the config file.
func (p *Policies) load(file string, loadPubKey func(path, file string) (sign.PublicKey, error)) error {
	if p.Policies == nil {
		p.Policies = protocol.DefaultPolicies()
	}
	p.Version = protocol.Version
	if err := p.Validate(); err != nil {
		return err
	}
	if p.BlockInterval <= 0 {
		p.BlockInterval = DefaultBlockInterval
	}
	p.accounts = nil
	for _, path := range p.AccountKeyPaths {
		pk, err := loadPubKey(path, file)
		if err != nil {
			return err
		}
		p.accounts = append(p.accounts, pk)
	}
	p.verifier = nil
	if p.ProofKeysPath != "" {
		sys, err := zkproof.LoadKeys(p.Policies, utils.ResolvePath(p.ProofKeysPath, file))
		if err != nil {
			return err
		}
		p.verifier = sys
	}
	return nil
}
