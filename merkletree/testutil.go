package merkletree

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher/mimc"
)

// NewTestTree returns a tree of the given height hashed with MiMC,
// with the given leaves set, for _tests_.
func NewTestTree(t *testing.T, height int, leaves map[uint64]uint64) *MerkleTree {
	m, err := New(height, mimc.New())
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range leaves {
		if _, err := m.SetLeaf(i, crypto.NewElement(v)); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func elem(v uint64) fr.Element {
	return crypto.NewElement(v)
}
