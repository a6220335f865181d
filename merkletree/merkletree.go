package merkletree

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto/hasher"
)

var (
	// ErrInvalidHeight indicates a tree height outside [1, MaxHeight].
	ErrInvalidHeight = errors.New("[merkletree] Invalid tree height")
	// ErrIndexOutOfRange indicates a leaf or node index outside the tree.
	ErrIndexOutOfRange = errors.New("[merkletree] Index out of range")
	// ErrInvalidTree indicates a malformed operation on the tree.
	ErrInvalidTree = errors.New("[merkletree] Invalid tree")
)

// MaxHeight is the largest supported tree height. A tree of height
// MaxHeight has 2^63 leaf slots, which still fits an uint64 index.
const MaxHeight = 64

// MerkleTree is a fixed-height binary Merkle tree over field elements.
// Levels are numbered from the leaves: level 0 holds the leaves and
// level height-1 holds the root. Leaves are stored as-is; an interior
// node is the hash of its two children.
//
// Only populated nodes are materialized. Any other node equals the
// zero hash of its level, so untouched subtrees cost nothing.
type MerkleTree struct {
	height int
	hasher hasher.TreeHasher
	nodes  []map[uint64]fr.Element
	zeroes []fr.Element
}

// New returns an empty tree of the given height whose interior nodes
// are computed with h.
func New(height int, h hasher.TreeHasher) (*MerkleTree, error) {
	if height < 1 || height > MaxHeight {
		return nil, ErrInvalidHeight
	}
	if h == nil {
		return nil, ErrInvalidTree
	}
	m := &MerkleTree{
		height: height,
		hasher: h,
		nodes:  make([]map[uint64]fr.Element, height),
		zeroes: Zeroes(h, height),
	}
	for i := range m.nodes {
		m.nodes[i] = make(map[uint64]fr.Element)
	}
	return m, nil
}

// Zeroes returns the zero-hash table for a tree of the given height:
// zeroes[0] is the empty leaf and zeroes[l] = H(zeroes[l-1], zeroes[l-1]).
func Zeroes(h hasher.TreeHasher, height int) []fr.Element {
	zeroes := make([]fr.Element, height)
	for l := 1; l < height; l++ {
		zeroes[l] = h.HashInterior(&zeroes[l-1], &zeroes[l-1])
	}
	return zeroes
}

// Height returns the number of levels of the tree, leaves and root included.
func (m *MerkleTree) Height() int {
	return m.height
}

// LeafCount returns the number of leaf slots, 2^(height-1).
func (m *MerkleTree) LeafCount() uint64 {
	return levelWidth(m.height, 0)
}

// Hasher returns the hash function of the tree.
func (m *MerkleTree) Hasher() hasher.TreeHasher {
	return m.hasher
}

// Root returns the current root.
func (m *MerkleTree) Root() fr.Element {
	return m.node(m.height-1, 0)
}

// Zeroes returns a copy of the tree's zero-hash table.
func (m *MerkleTree) Zeroes() []fr.Element {
	return append([]fr.Element{}, m.zeroes...)
}

// Node returns the node at the given level and index.
func (m *MerkleTree) Node(level int, index uint64) (fr.Element, error) {
	if level < 0 || level >= m.height || index >= levelWidth(m.height, level) {
		return fr.Element{}, ErrIndexOutOfRange
	}
	return m.node(level, index), nil
}

// Leaf returns the value stored at the given leaf index.
// Unwritten leaves hold the empty value 0.
func (m *MerkleTree) Leaf(index uint64) (fr.Element, error) {
	if index >= m.LeafCount() {
		return fr.Element{}, ErrIndexOutOfRange
	}
	return m.node(0, index), nil
}

// SetLeaf stores value at the given leaf index, recomputes the nodes on
// the path up to the root and returns the new root.
// Sibling subtrees are left untouched.
func (m *MerkleTree) SetLeaf(index uint64, value fr.Element) (fr.Element, error) {
	if index >= m.LeafCount() {
		return fr.Element{}, ErrIndexOutOfRange
	}
	m.nodes[0][index] = value
	cur := index
	for level := 1; level < m.height; level++ {
		cur >>= 1
		left := m.node(level-1, 2*cur)
		right := m.node(level-1, 2*cur+1)
		m.nodes[level][cur] = m.hasher.HashInterior(&left, &right)
	}
	return m.Root(), nil
}

// Clone returns a deep copy of m. Writes to the copy never affect m.
func (m *MerkleTree) Clone() *MerkleTree {
	c := &MerkleTree{
		height: m.height,
		hasher: m.hasher,
		nodes:  make([]map[uint64]fr.Element, m.height),
		zeroes: m.Zeroes(),
	}
	for l, level := range m.nodes {
		c.nodes[l] = make(map[uint64]fr.Element, len(level))
		for i, v := range level {
			c.nodes[l][i] = v
		}
	}
	return c
}

func (m *MerkleTree) node(level int, index uint64) fr.Element {
	if v, ok := m.nodes[level][index]; ok {
		return v
	}
	return m.zeroes[level]
}

// levelWidth returns the number of nodes at the given level.
func levelWidth(height, level int) uint64 {
	return uint64(1) << uint(height-1-level)
}
