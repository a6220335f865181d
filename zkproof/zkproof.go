// Package zkproof implements succinct update proofs: Groth16 proofs
// over BN254 that an update of one leaf moves the tree from one root to
// another, with an increment below the policy's bound. The commitment
// contract checks such a proof in constant time, without a witness.
package zkproof

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/coniks-sys/treesync/crypto/hasher/mimc"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/protocol/client"
	"github.com/coniks-sys/treesync/protocol/commitment"
)

var (
	// ErrUnsupportedHasher indicates policies whose tree hasher has no
	// circuit counterpart.
	ErrUnsupportedHasher = errors.New("[zkproof] Tree hasher has no circuit")
	// ErrBadWitness indicates a prover input whose witness doesn't fit
	// the circuit.
	ErrBadWitness = errors.New("[zkproof] Witness doesn't fit the circuit")
)

// A System holds the compiled update circuit of one tree shape and its
// proving and verifying keys.
type System struct {
	height int
	ccs    constraint.ConstraintSystem
	pk     groth16.ProvingKey
	vk     groth16.VerifyingKey
}

var _ client.Prover = (*System)(nil)
var _ commitment.ProofVerifier = (*System)(nil)

// Setup compiles the update circuit for trees shaped by p and runs
// the Groth16 setup. The setup is not a ceremony; its toxic waste is
// only forgotten, so it is fit for a single operator deployment.
func Setup(p *protocol.Policies) (*System, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.HashID != mimc.MiMC_BN254 {
		return nil, ErrUnsupportedHasher
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder,
		NewUpdateCircuit(p.TreeHeight, p.MaxIncrement))
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, err
	}
	return &System{
		height: p.TreeHeight,
		ccs:    ccs,
		pk:     pk,
		vk:     vk,
	}, nil
}

// Constraints returns the size of the compiled circuit.
func (s *System) Constraints() int {
	return s.ccs.GetNbConstraints()
}

// Prove proves the update described by in and returns the serialized
// proof. It fails if the update doesn't hold, and returns ctx.Err()
// if ctx is done before the proof is.
func (s *System) Prove(ctx context.Context, in *client.ProofInput) ([]byte, error) {
	if len(in.Witness) != s.height-1 {
		return nil, ErrBadWitness
	}
	assignment := s.assign(in.Statement)
	assignment.Before = bigOf(in.Before)
	for i, p := range in.Witness {
		assignment.Siblings[i] = bigOf(p.Sibling)
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}

	type result struct {
		proof []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		proof, err := groth16.Prove(s.ccs, s.pk, w)
		if err != nil {
			done <- result{err: err}
			return
		}
		var buf bytes.Buffer
		if _, err := proof.WriteTo(&buf); err != nil {
			done <- result{err: err}
			return
		}
		done <- result{proof: buf.Bytes()}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.proof, r.err
	}
}

// Verify checks that proof establishes st.
func (s *System) Verify(st *protocol.UpdateStatement, proof []byte) error {
	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrBadProof, err)
	}
	public, err := s.publicWitness(st)
	if err != nil {
		return err
	}
	if err := groth16.Verify(p, s.vk, public); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrBadProof, err)
	}
	return nil
}

func (s *System) publicWitness(st *protocol.UpdateStatement) (witness.Witness, error) {
	assignment := s.assign(st)
	assignment.Before = 0
	for i := range assignment.Siblings {
		assignment.Siblings[i] = 0
	}
	return frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
}

func (s *System) assign(st *protocol.UpdateStatement) *UpdateCircuit {
	c := NewUpdateCircuit(s.height, 0)
	c.OldRoot = bigOf(st.OldRoot)
	c.NewRoot = bigOf(st.NewRoot)
	c.Increment = bigOf(st.Increment)
	c.Index = st.Index
	return c
}

func bigOf(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
