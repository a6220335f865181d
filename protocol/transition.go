package protocol

import (
	"encoding/json"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
)

// A Transition records one accepted update of the commitment:
// leaf Index was increased by Increment, moving the root from OldRoot
// to NewRoot. Transitions are numbered from 0 in the order they were
// accepted, so replaying them on the genesis tree rebuilds the current
// tree.
type Transition struct {
	Seq       uint64
	Index     uint64
	Increment fr.Element
	OldRoot   fr.Element
	NewRoot   fr.Element
}

type transitionJSON struct {
	Seq       uint64 `json:"seq"`
	Index     uint64 `json:"index"`
	Increment string `json:"increment"`
	OldRoot   string `json:"oldRoot"`
	NewRoot   string `json:"newRoot"`
}

// MarshalJSON encodes the field elements as canonical decimal strings.
func (t *Transition) MarshalJSON() ([]byte, error) {
	return json.Marshal(&transitionJSON{
		Seq:       t.Seq,
		Index:     t.Index,
		Increment: crypto.ElementString(t.Increment),
		OldRoot:   crypto.ElementString(t.OldRoot),
		NewRoot:   crypto.ElementString(t.NewRoot),
	})
}

// UnmarshalJSON rejects non-canonical field elements.
func (t *Transition) UnmarshalJSON(b []byte) error {
	var tmp transitionJSON
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	elems, err := parseElements(tmp.Increment, tmp.OldRoot, tmp.NewRoot)
	if err != nil {
		return err
	}
	t.Seq = tmp.Seq
	t.Index = tmp.Index
	t.Increment, t.OldRoot, t.NewRoot = elems[0], elems[1], elems[2]
	return nil
}

func parseElements(ss ...string) ([]fr.Element, error) {
	out := make([]fr.Element, len(ss))
	for i, s := range ss {
		e, err := crypto.ParseElement(s)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}
