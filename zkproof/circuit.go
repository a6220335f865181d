package zkproof

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// UpdateCircuit proves that leaf Index of a tree with root OldRoot
// held Before, and that adding Increment to it yields root NewRoot.
// Increment must be below MaxIncrement. Siblings is the witness of
// the leaf, from the leaf level up; the direction of each step is the
// matching bit of Index.
type UpdateCircuit struct {
	OldRoot   frontend.Variable `gnark:",public"`
	NewRoot   frontend.Variable `gnark:",public"`
	Increment frontend.Variable `gnark:",public"`
	Index     frontend.Variable `gnark:",public"`

	Before   frontend.Variable
	Siblings []frontend.Variable

	MaxIncrement uint64 `gnark:"-"`
}

// NewUpdateCircuit returns the circuit shape for trees of the given
// height.
func NewUpdateCircuit(height int, maxIncrement uint64) *UpdateCircuit {
	return &UpdateCircuit{
		Siblings:     make([]frontend.Variable, height-1),
		MaxIncrement: maxIncrement,
	}
}

// Define declares the circuit constraints.
func (c *UpdateCircuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(c.Increment, c.MaxIncrement-1)
	bits := api.ToBinary(c.Index, len(c.Siblings))

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	api.AssertIsEqual(pathRoot(api, &h, c.Before, c.Siblings, bits), c.OldRoot)
	after := api.Add(c.Before, c.Increment)
	api.AssertIsEqual(pathRoot(api, &h, after, c.Siblings, bits), c.NewRoot)
	return nil
}

// pathRoot hashes leaf up to the root. A set bit means the node on the
// path is a right child.
func pathRoot(api frontend.API, h *mimc.MiMC, leaf frontend.Variable,
	siblings, bits []frontend.Variable) frontend.Variable {
	cur := leaf
	for i, sibling := range siblings {
		h.Reset()
		left := api.Select(bits[i], sibling, cur)
		right := api.Select(bits[i], cur, sibling)
		h.Write(left, right)
		cur = h.Sum()
	}
	return cur
}
