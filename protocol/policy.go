package protocol

import (
	"fmt"

	"github.com/coniks-sys/treesync/crypto/hasher"
	"github.com/coniks-sys/treesync/crypto/hasher/mimc"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/utils"
)

const (
	// DefaultTreeHeight is the height of the tree the system ships with.
	DefaultTreeHeight = 10
	// DefaultMaxIncrement is the exclusive bound on a single increment.
	DefaultMaxIncrement = 20
)

// Policies is a summary of the rules shared by the commitment contract,
// the sync store and the clients: the protocol version, the tree hash
// function, the tree height and the exclusive bound on an increment.
type Policies struct {
	Version      string `toml:"-"`
	HashID       string `toml:"hash_id"`
	TreeHeight   int    `toml:"tree_height"`
	MaxIncrement uint64 `toml:"max_increment"`
}

// NewPolicies returns a new Policies for a tree of the given height
// hashed with MiMC.
func NewPolicies(height int, maxIncrement uint64) *Policies {
	return &Policies{
		Version:      Version,
		HashID:       mimc.MiMC_BN254,
		TreeHeight:   height,
		MaxIncrement: maxIncrement,
	}
}

// DefaultPolicies returns the policies of a height-10 tree with
// increments bounded by 20.
func DefaultPolicies() *Policies {
	return NewPolicies(DefaultTreeHeight, DefaultMaxIncrement)
}

// Validate checks that p describes a usable deployment. The tree must
// be small enough to be exchanged as a dense snapshot.
func (p *Policies) Validate() error {
	if p.TreeHeight < 1 || p.TreeHeight > merkletree.MaxSnapshotHeight {
		return fmt.Errorf("%w: tree height must be in [1, %d], got %d",
			ErrConfig, merkletree.MaxSnapshotHeight, p.TreeHeight)
	}
	if p.MaxIncrement == 0 {
		return fmt.Errorf("%w: max increment must be positive", ErrConfig)
	}
	if _, err := hasher.Hasher(p.HashID); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// Hasher returns the tree hasher named by p.
func (p *Policies) Hasher() (hasher.TreeHasher, error) {
	h, err := hasher.Hasher(p.HashID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return h, nil
}

// NewTree returns an empty tree shaped by p.
func (p *Policies) NewTree() (*merkletree.MerkleTree, error) {
	h, err := p.Hasher()
	if err != nil {
		return nil, err
	}
	return merkletree.New(p.TreeHeight, h)
}

// Serialize serializes the policies. Transactions bind to it so that a
// transaction built under other policies is never executed.
func (p *Policies) Serialize() []byte {
	var bs []byte
	bs = append(bs, []byte(p.Version)...)
	bs = append(bs, []byte(p.HashID)...)
	bs = append(bs, utils.UInt32ToBytes(uint32(p.TreeHeight))...)
	bs = append(bs, utils.ULongToBytes(p.MaxIncrement)...)
	return bs
}
