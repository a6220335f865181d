package merkletree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher"
)

const (
	// SnapshotVersion is the version of the dense snapshot schema.
	SnapshotVersion = 1
	// MaxSnapshotHeight bounds the height of trees exchanged as dense
	// snapshots, which carry every node of every level.
	MaxSnapshotHeight = 16
)

var (
	// ErrSnapshotTooLarge indicates a tree too high for a dense snapshot.
	ErrSnapshotTooLarge = errors.New("[merkletree] Tree too high for a dense snapshot")
	// ErrMalformedSnapshot indicates a snapshot that doesn't follow the schema.
	ErrMalformedSnapshot = errors.New("[merkletree] Malformed snapshot")
	// ErrInconsistentSnapshot indicates a snapshot whose nodes or zero
	// hashes disagree with the hash of their children.
	ErrInconsistentSnapshot = errors.New("[merkletree] Inconsistent snapshot")
)

// A Snapshot is the dense, fixed-schema serialization of a tree.
// Levels[l] has exactly 2^(Height-1-l) entries (level 0 being the leaves)
// and Zeroes has exactly Height entries. Every element is the canonical
// decimal encoding of a field element.
type Snapshot struct {
	Version int        `json:"version"`
	Height  int        `json:"height"`
	Levels  [][]string `json:"levels"`
	Zeroes  []string   `json:"zeroes"`
}

// Snapshot returns the dense serialization of m.
func (m *MerkleTree) Snapshot() (*Snapshot, error) {
	if m.height > MaxSnapshotHeight {
		return nil, ErrSnapshotTooLarge
	}
	s := &Snapshot{
		Version: SnapshotVersion,
		Height:  m.height,
		Levels:  make([][]string, m.height),
		Zeroes:  make([]string, m.height),
	}
	for l := 0; l < m.height; l++ {
		width := levelWidth(m.height, l)
		s.Levels[l] = make([]string, width)
		for i := uint64(0); i < width; i++ {
			s.Levels[l][i] = crypto.ElementString(m.node(l, i))
		}
		s.Zeroes[l] = crypto.ElementString(m.zeroes[l])
	}
	return s, nil
}

// FromSnapshot rebuilds a tree from s, hashing with h.
// Every element must be canonical, every level must have its exact
// width, the zero table must match h and every interior node must be
// the hash of its children. Nothing is trusted on faith.
func FromSnapshot(s *Snapshot, h hasher.TreeHasher) (*MerkleTree, error) {
	if s == nil || s.Version != SnapshotVersion {
		return nil, ErrMalformedSnapshot
	}
	if s.Height > MaxSnapshotHeight {
		return nil, ErrSnapshotTooLarge
	}
	m, err := New(s.Height, h)
	if err != nil {
		return nil, err
	}
	if err := m.checkZeroes(s.Zeroes); err != nil {
		return nil, err
	}
	if len(s.Levels) != m.height {
		return nil, fmt.Errorf("%w: expected %d levels, got %d",
			ErrMalformedSnapshot, m.height, len(s.Levels))
	}

	levels := make([][]fr.Element, m.height)
	for l := range s.Levels {
		width := levelWidth(m.height, l)
		if uint64(len(s.Levels[l])) != width {
			return nil, fmt.Errorf("%w: level %d has %d nodes, expected %d",
				ErrMalformedSnapshot, l, len(s.Levels[l]), width)
		}
		levels[l] = make([]fr.Element, width)
		for i, str := range s.Levels[l] {
			v, err := crypto.ParseElement(str)
			if err != nil {
				return nil, fmt.Errorf("%w: level %d index %d: %v",
					ErrMalformedSnapshot, l, i, err)
			}
			levels[l][i] = v
		}
	}

	for l := 1; l < m.height; l++ {
		for i := range levels[l] {
			expect := h.HashInterior(&levels[l-1][2*i], &levels[l-1][2*i+1])
			if !expect.Equal(&levels[l][i]) {
				return nil, fmt.Errorf("%w: level %d index %d",
					ErrInconsistentSnapshot, l, i)
			}
		}
	}

	for l := range levels {
		for i := range levels[l] {
			if !levels[l][i].Equal(&m.zeroes[l]) {
				m.nodes[l][uint64(i)] = levels[l][i]
			}
		}
	}
	return m, nil
}

// EncodeSnapshot writes s to w as JSON.
func EncodeSnapshot(w io.Writer, s *Snapshot) error {
	return json.NewEncoder(w).Encode(s)
}

// DecodeSnapshot reads a single JSON snapshot from r.
// Unknown fields and trailing data are rejected.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	s := new(Snapshot)
	if err := decodeStrict(r, s); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeTree parses either snapshot encoding from data and rebuilds the
// tree it describes. A document with a "levels" key is a dense Snapshot,
// one with a "nodes" key is a LegacySnapshot.
func DecodeTree(data []byte, h hasher.TreeHasher) (*MerkleTree, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if _, ok := probe["levels"]; ok {
		s, err := DecodeSnapshot(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return FromSnapshot(s, h)
	}
	if _, ok := probe["nodes"]; ok {
		s := new(LegacySnapshot)
		if err := decodeStrict(bytes.NewReader(data), s); err != nil {
			return nil, err
		}
		return FromLegacySnapshot(s, h)
	}
	return nil, ErrMalformedSnapshot
}

func (m *MerkleTree) checkZeroes(zeroes []string) error {
	if len(zeroes) != m.height {
		return fmt.Errorf("%w: expected %d zeroes, got %d",
			ErrMalformedSnapshot, m.height, len(zeroes))
	}
	for l, str := range zeroes {
		z, err := crypto.ParseElement(str)
		if err != nil {
			return fmt.Errorf("%w: zero %d: %v", ErrMalformedSnapshot, l, err)
		}
		if !z.Equal(&m.zeroes[l]) {
			return fmt.Errorf("%w: zero %d", ErrInconsistentSnapshot, l)
		}
	}
	return nil
}

func decodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrMalformedSnapshot)
	}
	return nil
}
