package client

import (
	"context"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/protocol/syncstore"
)

// A SnapshotStore gives access to the tree held by the sync store.
// WriteSnapshot states root, the commitment m is believed to match.
type SnapshotStore interface {
	ReadSnapshot(ctx context.Context) (*merkletree.MerkleTree, error)
	WriteSnapshot(ctx context.Context, m *merkletree.MerkleTree, root fr.Element) error
}

// A RootReader reads the commitment held by the contract.
type RootReader interface {
	Root(ctx context.Context) (fr.Element, error)
}

// A Broadcaster submits signed transactions and returns the handle
// their status can be polled with.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx *protocol.Transaction) (string, error)
}

// A FinalityWaiter reports the status of a submitted transaction.
// A pending status means the transaction isn't final yet.
type FinalityWaiter interface {
	AwaitFinality(ctx context.Context, handle string) (*protocol.TxStatus, error)
}

// A Chain is where the commitment contract lives.
type Chain interface {
	RootReader
	Broadcaster
	FinalityWaiter
}

// A Signer turns a contract call into a signed transaction.
type Signer interface {
	Sign(call *protocol.Call) (*protocol.Transaction, error)
}

// ProofInput is what a Prover needs to prove an update: the public
// statement and the witness and leaf value it was derived from.
type ProofInput struct {
	Statement *protocol.UpdateStatement
	Witness   merkletree.Witness
	Before    fr.Element
}

// A Prover produces succinct proofs of updates. Prove must return
// promptly once ctx is done.
type Prover interface {
	Prove(ctx context.Context, in *ProofInput) ([]byte, error)
}

// KeySigner signs calls with a private key for a given chain.
type KeySigner struct {
	ChainID []byte
	Key     sign.PrivateKey
}

var _ Signer = (*KeySigner)(nil)

// Sign implements Signer.
func (s *KeySigner) Sign(call *protocol.Call) (*protocol.Transaction, error) {
	return protocol.NewTransaction(s.ChainID, s.Key, call)
}

// LocalStore is a SnapshotStore backed by an in-process sync store.
type LocalStore struct {
	Store *syncstore.Store
}

var _ SnapshotStore = LocalStore{}

// ReadSnapshot implements SnapshotStore.
func (s LocalStore) ReadSnapshot(ctx context.Context) (*merkletree.MerkleTree, error) {
	return s.Store.Tree()
}

// WriteSnapshot implements SnapshotStore.
func (s LocalStore) WriteSnapshot(ctx context.Context, m *merkletree.MerkleTree, root fr.Element) error {
	return s.Store.Write(m, root)
}
