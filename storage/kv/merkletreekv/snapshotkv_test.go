package merkletreekv

import (
	"testing"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher/mimc"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/storage/kv"
	"github.com/coniks-sys/treesync/utils"
)

func TestSnapshotStore(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		genesis := merkletree.NewTestTree(t, 4, map[uint64]uint64{1: 5})
		current := genesis.Clone()
		if _, err := current.SetLeaf(3, crypto.NewElement(7)); err != nil {
			t.Fatal(err)
		}
		if err := StoreSnapshot(db, GenesisSlot, genesis); err != nil {
			t.Fatal(err)
		}
		if err := StoreSnapshot(db, CurrentSlot, current); err != nil {
			t.Fatal(err)
		}

		gotGenesis, err := LoadSnapshot(db, GenesisSlot, mimc.New())
		if err != nil {
			t.Fatal(err)
		}
		gotCurrent, err := LoadSnapshot(db, CurrentSlot, mimc.New())
		if err != nil {
			t.Fatal(err)
		}
		r1, r2 := genesis.Root(), gotGenesis.Root()
		if !r1.Equal(&r2) {
			t.Fatal("Bad genesis loading/storing")
		}
		r1, r2 = current.Root(), gotCurrent.Root()
		if !r1.Equal(&r2) {
			t.Fatal("Bad current tree loading/storing")
		}
	})
}

func TestLoadMissingSnapshot(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		_, err := LoadSnapshot(db, CurrentSlot, mimc.New())
		if !kv.IsNotFound(db, err) {
			t.Fatal("Expect a not found error, got", err)
		}
	})
}

func TestConfirmedRoot(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		if _, ok, err := LoadConfirmedRoot(db); ok || err != nil {
			t.Fatal("Expect no confirmed root, got", ok, err)
		}
		m := merkletree.NewTestTree(t, 3, map[uint64]uint64{2: 9})
		if err := StoreConfirmed(db, m, m.Root()); err != nil {
			t.Fatal(err)
		}
		root, ok, err := LoadConfirmedRoot(db)
		if err != nil || !ok {
			t.Fatal("Expect a confirmed root, got", ok, err)
		}
		want := m.Root()
		if !root.Equal(&want) {
			t.Fatal("Bad confirmed root loading/storing")
		}
		got, err := LoadSnapshot(db, CurrentSlot, mimc.New())
		if err != nil {
			t.Fatal(err)
		}
		if r := got.Root(); !r.Equal(&want) {
			t.Fatal("Current tree not stored along with its root")
		}

		other := crypto.NewElement(1)
		if err := StoreConfirmedRoot(db, other); err != nil {
			t.Fatal(err)
		}
		root, _, _ = LoadConfirmedRoot(db)
		if !root.Equal(&other) {
			t.Fatal("Confirmed root not replaced")
		}
	})
}

func TestLoadBadConfirmedRoot(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		if err := db.Put([]byte{ConfirmedRootIdentifier}, []byte{1, 2, 3}); err != nil {
			t.Fatal(err)
		}
		if _, _, err := LoadConfirmedRoot(db); err != kv.ErrorBadBufferLength {
			t.Fatal("Expect", kv.ErrorBadBufferLength, "got", err)
		}
	})
}
