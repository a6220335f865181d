package merkletree

import (
	"fmt"
	"strconv"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher"
)

// A LegacySnapshot is the sparse nested-map encoding of a tree:
// Nodes maps a level (0 = leaves) to a map from node index to value,
// with both keys written as decimal strings. Stores written before the
// dense Snapshot schema existed hold this form.
type LegacySnapshot struct {
	Height int                          `json:"height"`
	Nodes  map[string]map[string]string `json:"nodes"`
	Zeroes []string                     `json:"zeroes"`
}

// LegacySnapshot returns the sparse serialization of m. Only populated
// nodes are listed.
func (m *MerkleTree) LegacySnapshot() *LegacySnapshot {
	s := &LegacySnapshot{
		Height: m.height,
		Nodes:  make(map[string]map[string]string, m.height),
		Zeroes: make([]string, m.height),
	}
	for l, level := range m.nodes {
		s.Zeroes[l] = crypto.ElementString(m.zeroes[l])
		if len(level) == 0 {
			continue
		}
		nodes := make(map[string]string, len(level))
		for i, v := range level {
			nodes[strconv.FormatUint(i, 10)] = crypto.ElementString(v)
		}
		s.Nodes[strconv.Itoa(l)] = nodes
	}
	return s
}

// FromLegacySnapshot rebuilds a tree from a sparse snapshot, hashing
// with h. The tree is recomputed from the listed leaves; every listed
// interior node must agree with the recomputed one.
func FromLegacySnapshot(s *LegacySnapshot, h hasher.TreeHasher) (*MerkleTree, error) {
	if s == nil {
		return nil, ErrMalformedSnapshot
	}
	m, err := New(s.Height, h)
	if err != nil {
		return nil, err
	}
	if err := m.checkZeroes(s.Zeroes); err != nil {
		return nil, err
	}

	type entry struct {
		level int
		index uint64
		value fr.Element
	}
	var interior []entry
	for lk, nodes := range s.Nodes {
		level, err := parseKey(lk)
		if err != nil || level >= uint64(m.height) {
			return nil, fmt.Errorf("%w: bad level %q", ErrMalformedSnapshot, lk)
		}
		width := levelWidth(m.height, int(level))
		for ik, str := range nodes {
			index, err := parseKey(ik)
			if err != nil || index >= width {
				return nil, fmt.Errorf("%w: bad index %q at level %d",
					ErrMalformedSnapshot, ik, level)
			}
			v, err := crypto.ParseElement(str)
			if err != nil {
				return nil, fmt.Errorf("%w: level %d index %d: %v",
					ErrMalformedSnapshot, level, index, err)
			}
			if level == 0 {
				if _, err := m.SetLeaf(index, v); err != nil {
					return nil, err
				}
				continue
			}
			interior = append(interior, entry{int(level), index, v})
		}
	}

	for _, e := range interior {
		got := m.node(e.level, e.index)
		if !got.Equal(&e.value) {
			return nil, fmt.Errorf("%w: level %d index %d",
				ErrInconsistentSnapshot, e.level, e.index)
		}
	}
	return m, nil
}

// parseKey parses a canonical unsigned decimal map key.
func parseKey(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if strconv.FormatUint(v, 10) != s {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
