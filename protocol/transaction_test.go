package protocol

import (
	"encoding/json"
	"testing"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/merkletree"
)

func newTestKey(t *testing.T) sign.PrivateKey {
	key, err := sign.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestTransactionSignVerify(t *testing.T) {
	key := newTestKey(t)
	m := merkletree.NewTestTree(t, 10, map[uint64]uint64{10: 111})
	w, _ := m.Witness(10)
	call := NewUpdateCall(w, crypto.NewElement(111), crypto.NewElement(9))
	chainID := ChainID(DefaultPolicies())

	tx, err := NewTransaction(chainID, key, call)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Verify(); err != nil {
		t.Fatal(err)
	}

	// the signature must survive the wire
	b, err := json.Marshal(tx)
	if err != nil {
		t.Fatal(err)
	}
	var got Transaction
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if err := got.Verify(); err != nil {
		t.Fatal("Signature broken by a JSON round trip:", err)
	}
	h1, _ := tx.Hash()
	h2, _ := got.Hash()
	if string(h1) != string(h2) {
		t.Fatal("Hash changed across a JSON round trip")
	}

	got.Call.Increment = "10"
	if err := got.Verify(); err != ErrBadSignature {
		t.Fatal("Expect", ErrBadSignature, "got", err)
	}
}

func TestTransactionsAreUnique(t *testing.T) {
	key := newTestKey(t)
	call := NewInitStateCall(crypto.NewElement(1))
	tx1, _ := NewTransaction(nil, key, call)
	tx2, _ := NewTransaction(nil, key, call)
	h1, _ := tx1.Hash()
	h2, _ := tx2.Hash()
	if string(h1) == string(h2) {
		t.Fatal("Two transactions of the same call share a hash")
	}
}

func TestTransactionWithoutCall(t *testing.T) {
	tx := &Transaction{}
	if err := tx.Verify(); err != ErrMalformedMessage {
		t.Fatal("Expect", ErrMalformedMessage, "got", err)
	}
}

func TestUpdateStatementJSON(t *testing.T) {
	st := &UpdateStatement{
		OldRoot:   crypto.NewElement(1),
		NewRoot:   crypto.NewElement(2),
		Increment: crypto.NewElement(9),
		Index:     10,
	}
	b, err := json.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	var got UpdateStatement
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Index != 10 || !got.NewRoot.Equal(&st.NewRoot) || !got.Increment.Equal(&st.Increment) {
		t.Fatal("Statement changed across a JSON round trip")
	}
	if err := json.Unmarshal([]byte(`{"oldRoot":"01","newRoot":"2","increment":"9","index":10}`), &got); err == nil {
		t.Fatal("Expect an error for a non-canonical root")
	}
}

func TestTransitionJSON(t *testing.T) {
	tr := &Transition{Seq: 3, Index: 10, Increment: crypto.NewElement(9),
		OldRoot: crypto.NewElement(5), NewRoot: crypto.NewElement(6)}
	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatal(err)
	}
	var got Transition
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Seq != 3 || got.Index != 10 || !got.OldRoot.Equal(&tr.OldRoot) {
		t.Fatal("Transition changed across a JSON round trip")
	}
}
