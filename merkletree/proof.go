package merkletree

import (
	"encoding/json"
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher"
)

var (
	// ErrWitnessLength indicates a witness whose length doesn't match
	// the height of the tree it is checked against.
	ErrWitnessLength = errors.New("[merkletree] Witness length does not match tree height")
)

// PathElement is one step of a Witness: the sibling of the path node at
// that level and whether the path node is the left child (IsLeft) or the
// right child.
type PathElement struct {
	Sibling fr.Element
	IsLeft  bool
}

// A Witness is the authentication path of a leaf, ordered from the
// leaf level upward. It has height-1 elements and lets anyone recompute
// the root from a claimed leaf value without the rest of the tree.
type Witness []PathElement

// Witness returns the authentication path of the leaf at index.
// For any tree m and valid index i,
// m.Witness(i).CalculateRoot(h, m.Leaf(i)) equals m.Root().
func (m *MerkleTree) Witness(index uint64) (Witness, error) {
	if index >= m.LeafCount() {
		return nil, ErrIndexOutOfRange
	}
	w := make(Witness, m.height-1)
	cur := index
	for level := 0; level < m.height-1; level++ {
		isLeft := cur%2 == 0
		sibling := cur + 1
		if !isLeft {
			sibling = cur - 1
		}
		w[level] = PathElement{
			Sibling: m.node(level, sibling),
			IsLeft:  isLeft,
		}
		cur >>= 1
	}
	return w, nil
}

// CalculateRoot walks the path from leaf up to the root with h and
// returns the root the witness commits to for that leaf value.
func (w Witness) CalculateRoot(h hasher.TreeHasher, leaf fr.Element) fr.Element {
	cur := leaf
	for i := range w {
		if w[i].IsLeft {
			cur = h.HashInterior(&cur, &w[i].Sibling)
		} else {
			cur = h.HashInterior(&w[i].Sibling, &cur)
		}
	}
	return cur
}

// Index recovers the leaf index from the direction bits of the path.
func (w Witness) Index() uint64 {
	var index uint64
	for i := range w {
		if !w[i].IsLeft {
			index |= uint64(1) << uint(i)
		}
	}
	return index
}

// Height returns the height of the tree w belongs to.
func (w Witness) Height() int {
	return len(w) + 1
}

// CheckHeight returns ErrWitnessLength unless w belongs to a tree
// of the given height.
func (w Witness) CheckHeight(height int) error {
	if w.Height() != height {
		return ErrWitnessLength
	}
	return nil
}

type pathElementJSON struct {
	Sibling string `json:"sibling"`
	IsLeft  bool   `json:"isLeft"`
}

// MarshalJSON encodes the sibling as a canonical decimal string.
func (p PathElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(&pathElementJSON{
		Sibling: crypto.ElementString(p.Sibling),
		IsLeft:  p.IsLeft,
	})
}

// UnmarshalJSON rejects siblings that aren't canonical field elements.
func (p *PathElement) UnmarshalJSON(b []byte) error {
	var tmp pathElementJSON
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	sibling, err := crypto.ParseElement(tmp.Sibling)
	if err != nil {
		return err
	}
	p.Sibling = sibling
	p.IsLeft = tmp.IsLeft
	return nil
}
