package merkletreekv

import (
	"testing"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/storage/kv"
	"github.com/coniks-sys/treesync/utils"
)

func TestCommitmentStore(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		if _, ok, err := LoadCommitment(db); ok || err != nil {
			t.Fatal("Expect an uninitialized commitment, got", ok, err)
		}
		genesis := crypto.NewElement(10)
		if err := StoreCommitment(db, genesis); err != nil {
			t.Fatal(err)
		}
		root, ok, err := LoadCommitment(db)
		if err != nil || !ok || !root.Equal(&genesis) {
			t.Fatal("Bad commitment loading/storing")
		}
		if n, err := LoadTransitionCount(db); err != nil || n != 0 {
			t.Fatal("Expect no transitions, got", n, err)
		}

		t0 := &protocol.Transition{Seq: 0, Index: 1, Increment: crypto.NewElement(3),
			OldRoot: genesis, NewRoot: crypto.NewElement(11)}
		t1 := &protocol.Transition{Seq: 1, Index: 2, Increment: crypto.NewElement(4),
			OldRoot: t0.NewRoot, NewRoot: crypto.NewElement(12)}
		for _, tr := range []*protocol.Transition{t0, t1} {
			if err := AppendTransition(db, tr); err != nil {
				t.Fatal(err)
			}
		}
		root, _, _ = LoadCommitment(db)
		if !root.Equal(&t1.NewRoot) {
			t.Fatal("Commitment not moved by the appended transitions")
		}

		ts, err := LoadTransitions(db, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(ts) != 2 || ts[0].Index != 1 || ts[1].Seq != 1 || !ts[1].NewRoot.Equal(&t1.NewRoot) {
			t.Fatal("Bad transitions loading/storing", ts)
		}
		ts, err = LoadTransitions(db, 1)
		if err != nil || len(ts) != 1 || ts[0].Seq != 1 {
			t.Fatal("Expect only the second transition, got", ts, err)
		}
		ts, err = LoadTransitions(db, 5)
		if err != nil || len(ts) != 0 {
			t.Fatal("Expect no transitions, got", ts, err)
		}
	})
}

func TestAppendOutOfOrder(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		if err := StoreCommitment(db, crypto.NewElement(1)); err != nil {
			t.Fatal(err)
		}
		tr := &protocol.Transition{Seq: 3}
		if err := AppendTransition(db, tr); err == nil {
			t.Fatal("Expect an error for a gap in the transition log")
		}
	})
}
