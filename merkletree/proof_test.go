package merkletree

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/coniks-sys/treesync/crypto/hasher/mimc"
)

func TestWitnessCalculateRoot(t *testing.T) {
	m := NewTestTree(t, 10, map[uint64]uint64{10: 111, 11: 4, 300: 8})
	h := mimc.New()
	for _, i := range []uint64{0, 10, 11, 12, 300, 511} {
		w, err := m.Witness(i)
		if err != nil {
			t.Fatal(err)
		}
		if len(w) != 9 {
			t.Fatal("Witness must have height-1 elements")
		}
		leaf, _ := m.Leaf(i)
		got := w.CalculateRoot(h, leaf)
		root := m.Root()
		if !got.Equal(&root) {
			t.Fatal("Witness doesn't reproduce the root for leaf", i)
		}
		if w.Index() != i {
			t.Fatal("Index mismatch", "expect", i, "got", w.Index())
		}
	}
}

func TestWitnessesAfterRandomWrites(t *testing.T) {
	m := NewTestTree(t, 6, nil)
	h := mimc.New()
	rnd := rand.New(rand.NewSource(42))
	for n := 0; n < 40; n++ {
		index := uint64(rnd.Intn(int(m.LeafCount())))
		if _, err := m.SetLeaf(index, elem(rnd.Uint64())); err != nil {
			t.Fatal(err)
		}
		root := m.Root()
		for i := uint64(0); i < m.LeafCount(); i++ {
			w, err := m.Witness(i)
			if err != nil {
				t.Fatal(err)
			}
			leaf, _ := m.Leaf(i)
			if got := w.CalculateRoot(h, leaf); !got.Equal(&root) {
				t.Fatal("Witness of leaf", i, "is stale after write", n)
			}
		}
	}
}

func TestWitnessPredictsNewRoot(t *testing.T) {
	m := NewTestTree(t, 10, map[uint64]uint64{10: 111})
	h := mimc.New()
	w, _ := m.Witness(10)
	predicted := w.CalculateRoot(h, elem(120))
	root, _ := m.SetLeaf(10, elem(120))
	if !predicted.Equal(&root) {
		t.Fatal("Witness of the old tree must predict the new root")
	}
}

func TestWitnessWrongLeaf(t *testing.T) {
	m := NewTestTree(t, 10, map[uint64]uint64{10: 111})
	w, _ := m.Witness(10)
	got := w.CalculateRoot(mimc.New(), elem(110))
	root := m.Root()
	if got.Equal(&root) {
		t.Fatal("A wrong leaf value must not reproduce the root")
	}
}

func TestWitnessCheckHeight(t *testing.T) {
	m := NewTestTree(t, 10, nil)
	w, _ := m.Witness(0)
	if err := w.CheckHeight(10); err != nil {
		t.Fatal(err)
	}
	if err := w[:5].CheckHeight(10); err != ErrWitnessLength {
		t.Fatal("Expect", ErrWitnessLength, "got", err)
	}
}

func TestWitnessJSON(t *testing.T) {
	m := NewTestTree(t, 5, map[uint64]uint64{3: 7})
	w, _ := m.Witness(3)
	b, err := json.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	var got Witness
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(w) {
		t.Fatal("Length mismatch")
	}
	for i := range w {
		if !got[i].Sibling.Equal(&w[i].Sibling) || got[i].IsLeft != w[i].IsLeft {
			t.Fatal("Element mismatch at", i)
		}
	}

	bad := []byte(`[{"sibling":"-1","isLeft":true}]`)
	if err := json.Unmarshal(bad, &got); err == nil {
		t.Fatal("Expect an error for a non-canonical sibling")
	}
}
