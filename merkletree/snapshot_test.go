package merkletree

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher/mimc"
)

func TestSnapshotRoundTrip(t *testing.T) {
	m := NewTestTree(t, 10, map[uint64]uint64{10: 111, 0: 3, 511: 1})
	s, err := m.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Levels) != 10 || len(s.Levels[0]) != 512 || len(s.Levels[9]) != 1 {
		t.Fatal("Unexpected snapshot shape")
	}

	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, s); err != nil {
		t.Fatal(err)
	}
	s2, err := DecodeSnapshot(&buf)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := FromSnapshot(s2, mimc.New())
	if err != nil {
		t.Fatal(err)
	}
	r1, r2 := m.Root(), m2.Root()
	if !r1.Equal(&r2) {
		t.Fatal("Root changed across a snapshot round trip")
	}
	assertSameTree(t, m, m2)
}

// assertSameTree compares every leaf and every witness of m and m2.
func assertSameTree(t *testing.T, m, m2 *MerkleTree) {
	t.Helper()
	if m.LeafCount() != m2.LeafCount() {
		t.Fatal("Leaf count mismatch")
	}
	for i := uint64(0); i < m.LeafCount(); i++ {
		a, _ := m.Leaf(i)
		b, _ := m2.Leaf(i)
		if !a.Equal(&b) {
			t.Fatal("Leaf mismatch at", i)
		}
		w, err := m.Witness(i)
		if err != nil {
			t.Fatal(err)
		}
		w2, err := m2.Witness(i)
		if err != nil {
			t.Fatal(err)
		}
		if len(w) != len(w2) {
			t.Fatal("Witness length mismatch at", i)
		}
		for j := range w {
			if !w[j].Sibling.Equal(&w2[j].Sibling) || w[j].IsLeft != w2[j].IsLeft {
				t.Fatal("Witness mismatch at leaf", i, "level", j)
			}
		}
	}
}

func TestSnapshotTooLarge(t *testing.T) {
	m := NewTestTree(t, MaxSnapshotHeight+1, nil)
	if _, err := m.Snapshot(); err != ErrSnapshotTooLarge {
		t.Fatal("Expect", ErrSnapshotTooLarge, "got", err)
	}
}

func TestFromSnapshotRejects(t *testing.T) {
	m := NewTestTree(t, 4, map[uint64]uint64{2: 5})
	fresh := func() *Snapshot {
		s, err := m.Snapshot()
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
		want   error
	}{
		{"version", func(s *Snapshot) { s.Version = 2 }, ErrMalformedSnapshot},
		{"height", func(s *Snapshot) { s.Height = 0 }, ErrInvalidHeight},
		{"missing level", func(s *Snapshot) { s.Levels = s.Levels[:3] }, ErrMalformedSnapshot},
		{"short level", func(s *Snapshot) { s.Levels[0] = s.Levels[0][:7] }, ErrMalformedSnapshot},
		{"missing zero", func(s *Snapshot) { s.Zeroes = s.Zeroes[:3] }, ErrMalformedSnapshot},
		{"leading zero", func(s *Snapshot) { s.Levels[0][2] = "05" }, ErrMalformedSnapshot},
		{"negative", func(s *Snapshot) { s.Levels[0][3] = "-1" }, ErrMalformedSnapshot},
		{"not a number", func(s *Snapshot) { s.Levels[0][3] = "abc" }, ErrMalformedSnapshot},
		{"tampered leaf", func(s *Snapshot) { s.Levels[0][2] = "6" }, ErrInconsistentSnapshot},
		{"tampered root", func(s *Snapshot) { s.Levels[3][0] = "1" }, ErrInconsistentSnapshot},
		{"tampered zero", func(s *Snapshot) { s.Zeroes[1] = "1" }, ErrInconsistentSnapshot},
	}
	for _, tc := range tests {
		s := fresh()
		tc.mutate(s)
		if _, err := FromSnapshot(s, mimc.New()); !errors.Is(err, tc.want) {
			t.Error(tc.name, "expect", tc.want, "got", err)
		}
	}
}

func TestDecodeSnapshotStrict(t *testing.T) {
	if _, err := DecodeSnapshot(strings.NewReader(`{"version":1,"height":1,"levels":[["0"]],"zeroes":["0"],"extra":1}`)); !errors.Is(err, ErrMalformedSnapshot) {
		t.Error("Expect unknown fields to be rejected, got", err)
	}
	if _, err := DecodeSnapshot(strings.NewReader(`{"version":1,"height":1,"levels":[["0"]],"zeroes":["0"]} x`)); !errors.Is(err, ErrMalformedSnapshot) {
		t.Error("Expect trailing data to be rejected, got", err)
	}
	if _, err := DecodeSnapshot(strings.NewReader(`{"version":1,"height":1,"levels":[[0]],"zeroes":["0"]}`)); !errors.Is(err, ErrMalformedSnapshot) {
		t.Error("Expect numbers instead of strings to be rejected, got", err)
	}
}

func TestLegacySnapshotRoundTrip(t *testing.T) {
	m := NewTestTree(t, 10, map[uint64]uint64{10: 111, 77: 2})
	b, err := json.Marshal(m.LegacySnapshot())
	if err != nil {
		t.Fatal(err)
	}
	m2, err := DecodeTree(b, mimc.New())
	if err != nil {
		t.Fatal(err)
	}
	r1, r2 := m.Root(), m2.Root()
	if !r1.Equal(&r2) {
		t.Fatal("Root changed across a legacy round trip")
	}
	assertSameTree(t, m, m2)
}

func TestDecodeTreeDense(t *testing.T) {
	m := NewTestTree(t, 10, map[uint64]uint64{10: 111})
	s, _ := m.Snapshot()
	b, _ := json.Marshal(s)
	m2, err := DecodeTree(b, mimc.New())
	if err != nil {
		t.Fatal(err)
	}
	r1, r2 := m.Root(), m2.Root()
	if !r1.Equal(&r2) {
		t.Fatal("Root mismatch")
	}
	if _, err := DecodeTree([]byte(`{"height":10}`), mimc.New()); err != ErrMalformedSnapshot {
		t.Fatal("Expect", ErrMalformedSnapshot, "got", err)
	}
	if _, err := DecodeTree([]byte(`[1,2]`), mimc.New()); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatal("Expect", ErrMalformedSnapshot, "got", err)
	}
}

func TestLegacySnapshotRejects(t *testing.T) {
	m := NewTestTree(t, 4, map[uint64]uint64{2: 5})
	h := mimc.New()

	s := m.LegacySnapshot()
	s.Nodes["0"]["8"] = "1"
	if _, err := FromLegacySnapshot(s, h); !errors.Is(err, ErrMalformedSnapshot) {
		t.Error("Expect out of range index to be rejected, got", err)
	}

	s = m.LegacySnapshot()
	s.Nodes["01"] = map[string]string{"0": "1"}
	if _, err := FromLegacySnapshot(s, h); !errors.Is(err, ErrMalformedSnapshot) {
		t.Error("Expect non-canonical level key to be rejected, got", err)
	}

	s = m.LegacySnapshot()
	s.Nodes["3"]["0"] = crypto.ElementString(elem(1))
	if _, err := FromLegacySnapshot(s, h); !errors.Is(err, ErrInconsistentSnapshot) {
		t.Error("Expect a tampered root to be rejected, got", err)
	}

	s = m.LegacySnapshot()
	s.Zeroes = s.Zeroes[:1]
	if _, err := FromLegacySnapshot(s, h); !errors.Is(err, ErrMalformedSnapshot) {
		t.Error("Expect a short zero table to be rejected, got", err)
	}
}

// The original store format: height 10, leaf 10 set to 111.
func TestLegacyInitialTree(t *testing.T) {
	m := NewTestTree(t, 10, map[uint64]uint64{10: 111})
	s := m.LegacySnapshot()
	if s.Nodes["0"]["10"] != "111" {
		t.Fatal("Leaf 10 must be stored raw")
	}
	if len(s.Nodes) != 10 {
		t.Fatal("Each level holds one node on the path of leaf 10")
	}
}
