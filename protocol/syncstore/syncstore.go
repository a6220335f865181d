// This module implements the sync store: the off-chain holder of the
// full tree. The store is a cache of the commitment, not a source of
// truth. Writes are keyed by the last commitment the store saw
// confirmed, and the tree can always be rebuilt from the genesis tree
// and the transitions the commitment contract accepted.

package syncstore

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/storage/kv"
	"github.com/coniks-sys/treesync/storage/kv/merkletreekv"
)

// DefaultSeed returns the leaves a genesis tree is seeded with when
// none are given: leaf 10 holds 111.
func DefaultSeed() map[uint64]fr.Element {
	return map[uint64]fr.Element{10: crypto.NewElement(111)}
}

// A Store holds the genesis tree, the current tree and the last
// confirmed commitment. Writes are last-writer-wins among writers that
// agree with the confirmed commitment. A Store is safe for concurrent
// use. If it was created with a kv.DB, every change is persisted before
// it becomes visible.
type Store struct {
	mu        sync.RWMutex
	policies  *protocol.Policies
	genesis   *merkletree.MerkleTree
	current   *merkletree.MerkleTree
	confirmed *fr.Element
	db        kv.DB
}

// New returns a store for trees shaped by p. If db is not nil, the
// store is restored from it and persists to it.
func New(p *protocol.Policies, db kv.DB) (*Store, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		policies: p,
		db:       db,
	}
	if db == nil {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	h, err := s.policies.Hasher()
	if err != nil {
		return err
	}
	genesis, err := merkletreekv.LoadSnapshot(s.db, merkletreekv.GenesisSlot, h)
	switch {
	case kv.IsNotFound(s.db, err):
		return nil
	case err != nil:
		return err
	}
	current, err := merkletreekv.LoadSnapshot(s.db, merkletreekv.CurrentSlot, h)
	if err != nil {
		return err
	}
	if genesis.Height() != s.policies.TreeHeight || current.Height() != s.policies.TreeHeight {
		return protocol.ErrConfig
	}
	root, ok, err := merkletreekv.LoadConfirmedRoot(s.db)
	if err != nil {
		return err
	}
	s.genesis = genesis
	s.current = current
	if ok {
		s.confirmed = &root
	}
	return nil
}

// InitTree creates the genesis tree with the given leaves set and makes
// it the current tree. It returns ErrAlreadyInitialized if the store
// already holds a tree.
func (s *Store) InitTree(leaves map[uint64]fr.Element) (*merkletree.MerkleTree, error) {
	m, err := s.policies.NewTree()
	if err != nil {
		return nil, err
	}
	for index, v := range leaves {
		if _, err := m.SetLeaf(index, v); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.genesis != nil {
		return nil, protocol.ErrAlreadyInitialized
	}
	if s.db != nil {
		if err := merkletreekv.StoreSnapshot(s.db, merkletreekv.GenesisSlot, m); err != nil {
			return nil, err
		}
		if err := merkletreekv.StoreSnapshot(s.db, merkletreekv.CurrentSlot, m); err != nil {
			return nil, err
		}
	}
	s.genesis = m
	s.current = m.Clone()
	return m.Clone(), nil
}

// Read returns the snapshot of the current tree and its root.
func (s *Store) Read() (*merkletree.Snapshot, fr.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, fr.Element{}, protocol.ErrUninitialized
	}
	snap, err := s.current.Snapshot()
	if err != nil {
		return nil, fr.Element{}, err
	}
	return snap, s.current.Root(), nil
}

// Root returns the root of the current tree.
func (s *Store) Root() (fr.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return fr.Element{}, protocol.ErrUninitialized
	}
	return s.current.Root(), nil
}

// Tree returns a copy of the current tree.
func (s *Store) Tree() (*merkletree.MerkleTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, protocol.ErrUninitialized
	}
	return s.current.Clone(), nil
}

// Genesis returns a copy of the genesis tree.
func (s *Store) Genesis() (*merkletree.MerkleTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.genesis == nil {
		return nil, protocol.ErrUninitialized
	}
	return s.genesis.Clone(), nil
}

// Write replaces the current tree with m. statedRoot is the commitment
// the writer believes is current. Write returns ErrSerialization if m
// doesn't hash to statedRoot, and ErrStaleSnapshot unless statedRoot is
// the latest confirmed commitment. Until a commitment is confirmed the
// store keeps its genesis tree. Nothing changes in either case.
func (s *Store) Write(m *merkletree.MerkleTree, statedRoot fr.Element) error {
	if m.Height() != s.policies.TreeHeight {
		return protocol.ErrSerialization
	}
	if root := m.Root(); !root.Equal(&statedRoot) {
		return protocol.ErrSerialization
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return protocol.ErrUninitialized
	}
	if s.confirmed == nil || !s.confirmed.Equal(&statedRoot) {
		return protocol.ErrStaleSnapshot
	}
	return s.replace(m)
}

// Overwrite replaces the current tree with m unconditionally.
// It is the recovery path of an operator; clients use Write.
func (s *Store) Overwrite(m *merkletree.MerkleTree) error {
	if m.Height() != s.policies.TreeHeight {
		return protocol.ErrSerialization
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return protocol.ErrUninitialized
	}
	return s.replace(m)
}

// replace must be called with s locked.
func (s *Store) replace(m *merkletree.MerkleTree) error {
	if s.db != nil {
		if err := merkletreekv.StoreSnapshot(s.db, merkletreekv.CurrentSlot, m); err != nil {
			return err
		}
	}
	s.current = m.Clone()
	return nil
}

// Confirm records root as the latest commitment confirmed by the
// commitment contract. Later writes must state it.
func (s *Store) Confirm(root fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		if err := merkletreekv.StoreConfirmedRoot(s.db, root); err != nil {
			return err
		}
	}
	s.confirmed = &root
	return nil
}

// ConfirmedRoot returns the latest confirmed commitment. The boolean
// is false if the store was never told of one.
func (s *Store) ConfirmedRoot() (fr.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.confirmed == nil {
		return fr.Element{}, false
	}
	return *s.confirmed, true
}

// Rebuild replays transitions, which must be the complete log of
// the commitment contract, on the genesis tree and makes the result
// both the current tree and the confirmed commitment. It returns
// ErrConsistency, and changes nothing, if the log doesn't chain from
// the genesis root or a transition doesn't produce its recorded root.
func (s *Store) Rebuild(transitions []*protocol.Transition) (fr.Element, error) {
	m, err := s.Genesis()
	if err != nil {
		return fr.Element{}, err
	}
	root := m.Root()
	for i, t := range transitions {
		if t.Seq != uint64(i) || !root.Equal(&t.OldRoot) {
			return fr.Element{}, protocol.ErrConsistency
		}
		leaf, err := m.Leaf(t.Index)
		if err != nil {
			return fr.Element{}, protocol.ErrConsistency
		}
		leaf.Add(&leaf, &t.Increment)
		if root, err = m.SetLeaf(t.Index, leaf); err != nil {
			return fr.Element{}, err
		}
		if !root.Equal(&t.NewRoot) {
			return fr.Element{}, protocol.ErrConsistency
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		if err := merkletreekv.StoreConfirmed(s.db, m, root); err != nil {
			return fr.Element{}, err
		}
	}
	s.current = m
	s.confirmed = &root
	return root, nil
}
