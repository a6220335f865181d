package protocol

import (
	"encoding/json"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/merkletree"
)

// The methods of the commitment contract a transaction can call.
const (
	MethodInitState  = "initState"
	MethodUpdate     = "update"
	MethodApplyProof = "applyProof"
)

// txIdentifier is the domain separation prefix of signed transactions.
const txIdentifier = 'X'

// An UpdateStatement is the public part of a succinct update proof:
// applying Increment to leaf Index moves the root from OldRoot to
// NewRoot.
type UpdateStatement struct {
	OldRoot   fr.Element
	NewRoot   fr.Element
	Increment fr.Element
	Index     uint64
}

// A Call is the contract invocation carried by a transaction.
// Fields are decimal strings as they appear on the wire; the contract
// parses them strictly.
//
// initState uses Root. update uses Witness, NumberBefore and Increment.
// applyProof uses Statement and Proof.
type Call struct {
	Method       string             `json:"method"`
	Root         string             `json:"root,omitempty"`
	Witness      merkletree.Witness `json:"witness,omitempty"`
	NumberBefore string             `json:"numberBefore,omitempty"`
	Increment    string             `json:"increment,omitempty"`
	Statement    *UpdateStatement   `json:"statement,omitempty"`
	Proof        []byte             `json:"proof,omitempty"`
}

// NewInitStateCall returns the call setting the genesis commitment.
func NewInitStateCall(root fr.Element) *Call {
	return &Call{
		Method: MethodInitState,
		Root:   crypto.ElementString(root),
	}
}

// NewUpdateCall returns the call increasing the leaf proven by w.
func NewUpdateCall(w merkletree.Witness, before, increment fr.Element) *Call {
	return &Call{
		Method:       MethodUpdate,
		Witness:      w,
		NumberBefore: crypto.ElementString(before),
		Increment:    crypto.ElementString(increment),
	}
}

// NewApplyProofCall returns the call applying a succinctly proven update.
func NewApplyProofCall(st *UpdateStatement, proof []byte) *Call {
	return &Call{
		Method:    MethodApplyProof,
		Statement: st,
		Proof:     proof,
	}
}

// A Transaction is a signed Call. ChainID binds it to one deployment
// and Nonce makes every transaction unique, so that a transaction can be
// identified by its hash and never replayed.
type Transaction struct {
	ChainID   []byte         `json:"chainId"`
	Sender    sign.PublicKey `json:"sender"`
	Nonce     []byte         `json:"nonce"`
	Call      *Call          `json:"call"`
	Signature []byte         `json:"signature"`
}

// ChainID returns the identifier of the deployment governed by p.
func ChainID(p *Policies) []byte {
	return crypto.Digest(p.Serialize())
}

// NewTransaction builds a transaction for call and signs it with key.
func NewTransaction(chainID []byte, key sign.PrivateKey, call *Call) (*Transaction, error) {
	pk, ok := key.Public()
	if !ok {
		return nil, sign.ErrBadKeyLength
	}
	nonce, err := crypto.MakeRand()
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		ChainID: chainID,
		Sender:  pk,
		Nonce:   nonce,
		Call:    call,
	}
	msg, err := tx.Serialize()
	if err != nil {
		return nil, err
	}
	tx.Signature = key.Sign(msg)
	return tx, nil
}

// Serialize returns the bytes covered by the signature.
func (tx *Transaction) Serialize() ([]byte, error) {
	if tx.Call == nil {
		return nil, ErrMalformedMessage
	}
	call, err := json.Marshal(tx.Call)
	if err != nil {
		return nil, err
	}
	var bs []byte
	bs = append(bs, txIdentifier)
	bs = append(bs, tx.ChainID...)
	bs = append(bs, tx.Sender...)
	bs = append(bs, tx.Nonce...)
	bs = append(bs, call...)
	return bs, nil
}

// Verify checks the signature of tx against its sender.
func (tx *Transaction) Verify() error {
	msg, err := tx.Serialize()
	if err != nil {
		return err
	}
	if !tx.Sender.Verify(msg, tx.Signature) {
		return ErrBadSignature
	}
	return nil
}

// Hash returns the identifier of tx.
func (tx *Transaction) Hash() ([]byte, error) {
	msg, err := tx.Serialize()
	if err != nil {
		return nil, err
	}
	return crypto.Digest(msg, tx.Signature), nil
}

type updateStatementJSON struct {
	OldRoot   string `json:"oldRoot"`
	NewRoot   string `json:"newRoot"`
	Increment string `json:"increment"`
	Index     uint64 `json:"index"`
}

// MarshalJSON encodes the field elements as canonical decimal strings.
func (st *UpdateStatement) MarshalJSON() ([]byte, error) {
	return json.Marshal(&updateStatementJSON{
		OldRoot:   crypto.ElementString(st.OldRoot),
		NewRoot:   crypto.ElementString(st.NewRoot),
		Increment: crypto.ElementString(st.Increment),
		Index:     st.Index,
	})
}

// UnmarshalJSON rejects non-canonical field elements.
func (st *UpdateStatement) UnmarshalJSON(b []byte) error {
	var tmp updateStatementJSON
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	elems, err := parseElements(tmp.OldRoot, tmp.NewRoot, tmp.Increment)
	if err != nil {
		return err
	}
	st.OldRoot, st.NewRoot, st.Increment = elems[0], elems[1], elems[2]
	st.Index = tmp.Index
	return nil
}
