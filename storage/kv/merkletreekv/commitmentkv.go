package merkletreekv

import (
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/storage/kv"
	"github.com/coniks-sys/treesync/utils"
)

// StoreCommitment stores the genesis commitment root. It resets the
// transition log, so it must only be used when the contract is
// initialized.
func StoreCommitment(db kv.DB, root fr.Element) error {
	wb := db.NewBatch()
	wb.Put([]byte{CommitmentIdentifier}, elementBytes(root))
	wb.Put([]byte{TransitionCountIdentifier}, utils.ULongToBytes(0))
	return db.Write(wb)
}

// LoadCommitment loads the root held by the commitment contract.
// The boolean is false if the contract was never initialized.
func LoadCommitment(db kv.DB) (fr.Element, bool, error) {
	return loadElement(db, []byte{CommitmentIdentifier})
}

// AppendTransition atomically records t and moves the stored
// commitment to t.NewRoot. t.Seq must be the number of transitions
// recorded so far.
func AppendTransition(db kv.DB, t *protocol.Transition) error {
	count, err := LoadTransitionCount(db)
	if err != nil {
		return err
	}
	if t.Seq != count {
		return fmt.Errorf("[merkletreekv] transition %d appended after %d transitions", t.Seq, count)
	}
	buff, err := json.Marshal(t)
	if err != nil {
		return err
	}
	wb := db.NewBatch()
	wb.Put(transitionKey(t.Seq), buff)
	wb.Put([]byte{CommitmentIdentifier}, elementBytes(t.NewRoot))
	wb.Put([]byte{TransitionCountIdentifier}, utils.ULongToBytes(t.Seq+1))
	return db.Write(wb)
}

// LoadTransitionCount returns the number of recorded transitions.
func LoadTransitionCount(db kv.DB) (uint64, error) {
	v, ok, err := kv.GetOptional(db, []byte{TransitionCountIdentifier})
	if err != nil || !ok {
		return 0, err
	}
	return utils.BytesToULong(v)
}

// LoadTransitions loads the transitions numbered from and later,
// in order.
func LoadTransitions(db kv.DB, from uint64) ([]*protocol.Transition, error) {
	count, err := LoadTransitionCount(db)
	if err != nil {
		return nil, err
	}
	var ts []*protocol.Transition
	for seq := from; seq < count; seq++ {
		buff, err := db.Get(transitionKey(seq))
		if err != nil {
			return nil, err
		}
		t := new(protocol.Transition)
		if err := json.Unmarshal(buff, t); err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return ts, nil
}

func transitionKey(seq uint64) []byte {
	key := make([]byte, 0, 1+8)
	key = append(key, TransitionIdentifier)
	key = append(key, utils.ULongToBytes(seq)...)
	return key
}
