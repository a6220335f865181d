// This module implements the commitment contract: a minimal verifier
// holding a single tree root. It accepts an update only if the update
// is proven against the root it currently holds, either by an
// inclusion witness or by a succinct proof, and never sees the tree.

package commitment

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/storage/kv"
	"github.com/coniks-sys/treesync/storage/kv/merkletreekv"
)

// State is the lifecycle state of a Contract.
type State int

// A Contract is Uninitialized until InitState succeeds, and
// Initialized forever after.
const (
	Uninitialized State = iota
	Initialized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// A ProofVerifier checks succinct update proofs on behalf of the
// contract. Verify returns nil if proof establishes st.
type ProofVerifier interface {
	Verify(st *protocol.UpdateStatement, proof []byte) error
}

// A WitnessProof claims that leaf Witness.Index() holds LeafBefore
// under the expected root and asks for it to hold LeafAfter.
type WitnessProof struct {
	Witness    merkletree.Witness
	LeafBefore fr.Element
	LeafAfter  fr.Element
}

// A Contract holds the authoritative commitment and the log of
// the transitions it accepted. It is safe for concurrent use; every
// accepted update is a compare-and-swap on the held root, so among
// racing updates built against the same root exactly one wins.
type Contract struct {
	mu       sync.Mutex
	policies *protocol.Policies
	hasher   hasher.TreeHasher
	state    State
	root     fr.Element
	log      []*protocol.Transition
	verifier ProofVerifier
	db       kv.DB
}

// New returns an uninitialized contract enforcing policies p.
func New(p *protocol.Policies) (*Contract, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	h, err := p.Hasher()
	if err != nil {
		return nil, err
	}
	return &Contract{
		policies: p,
		hasher:   h,
	}, nil
}

// Load returns a contract persisting its state to db, restored from
// what db already holds. A db that was never written to yields an
// uninitialized contract.
func Load(p *protocol.Policies, db kv.DB) (*Contract, error) {
	c, err := New(p)
	if err != nil {
		return nil, err
	}
	c.db = db
	root, ok, err := merkletreekv.LoadCommitment(db)
	if err != nil {
		return nil, err
	}
	if !ok {
		return c, nil
	}
	log, err := merkletreekv.LoadTransitions(db, 0)
	if err != nil {
		return nil, err
	}
	if n := len(log); n > 0 && !log[n-1].NewRoot.Equal(&root) {
		return nil, fmt.Errorf("%w: stored commitment doesn't match its transition log",
			protocol.ErrInternal)
	}
	c.state = Initialized
	c.root = root
	c.log = log
	return c, nil
}

// SetVerifier installs the verifier ApplyProof checks proofs with.
func (c *Contract) SetVerifier(v ProofVerifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifier = v
}

// Policies returns the policies the contract enforces.
func (c *Contract) Policies() *protocol.Policies {
	return c.policies
}

// State returns the lifecycle state of the contract.
func (c *Contract) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Root returns the held commitment, or ErrUninitialized.
func (c *Contract) Root() (fr.Element, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Initialized {
		return fr.Element{}, protocol.ErrUninitialized
	}
	return c.root, nil
}

// Transitions returns the accepted transitions numbered from and later.
func (c *Contract) Transitions(from uint64) []*protocol.Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	if from >= uint64(len(c.log)) {
		return nil
	}
	ts := make([]*protocol.Transition, len(c.log)-int(from))
	copy(ts, c.log[from:])
	return ts
}

// InitState sets the genesis commitment. It succeeds only once; later
// calls return ErrAlreadyInitialized and leave the commitment as is.
func (c *Contract) InitState(root fr.Element) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Uninitialized {
		return protocol.ErrAlreadyInitialized
	}
	if c.db != nil {
		if err := merkletreekv.StoreCommitment(c.db, root); err != nil {
			return fmt.Errorf("%w: %v", protocol.ErrTransport, err)
		}
	}
	c.root = root
	c.state = Initialized
	return nil
}

// Update increases the leaf proven by w from numberBefore by increment.
//
// Update rejects with ErrBound unless increment is smaller than the
// policy's MaxIncrement, and with ErrConsistency unless w and
// numberBefore rebuild the held commitment. Otherwise the commitment
// is replaced by the root w yields for numberBefore+increment, which
// is returned. A rejected update leaves the contract unchanged.
func (c *Contract) Update(w merkletree.Witness, numberBefore, increment fr.Element) (fr.Element, error) {
	if c.State() != Initialized {
		return fr.Element{}, protocol.ErrUninitialized
	}
	if !crypto.LessThan(increment, c.policies.MaxIncrement) {
		return fr.Element{}, protocol.ErrBound
	}
	if err := w.CheckHeight(c.policies.TreeHeight); err != nil {
		return fr.Element{}, protocol.ErrConsistency
	}
	var after fr.Element
	after.Add(&numberBefore, &increment)
	candidate := w.CalculateRoot(c.hasher, numberBefore)
	return c.CompareAndSwapRoot(candidate, &WitnessProof{
		Witness:    w,
		LeafBefore: numberBefore,
		LeafAfter:  after,
	})
}

// CompareAndSwapRoot replaces the held commitment if it equals expected
// and wp proves LeafBefore under expected. The new commitment is the
// root wp.Witness yields for LeafAfter; it is returned. LeafAfter must
// exceed LeafBefore by less than the policy's MaxIncrement, or the swap
// rejects with ErrBound. Any other mismatch yields ErrConsistency. A
// rejected swap changes nothing.
func (c *Contract) CompareAndSwapRoot(expected fr.Element, wp *WitnessProof) (fr.Element, error) {
	if wp == nil {
		return fr.Element{}, protocol.ErrMalformedMessage
	}
	var increment fr.Element
	increment.Sub(&wp.LeafAfter, &wp.LeafBefore)
	// a decrease wraps around the field and fails the bound too
	if !crypto.LessThan(increment, c.policies.MaxIncrement) {
		return fr.Element{}, protocol.ErrBound
	}
	if err := wp.Witness.CheckHeight(c.policies.TreeHeight); err != nil {
		return fr.Element{}, protocol.ErrConsistency
	}
	before := wp.Witness.CalculateRoot(c.hasher, wp.LeafBefore)
	if !before.Equal(&expected) {
		return fr.Element{}, protocol.ErrConsistency
	}
	newRoot := wp.Witness.CalculateRoot(c.hasher, wp.LeafAfter)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Initialized {
		return fr.Element{}, protocol.ErrUninitialized
	}
	if !c.root.Equal(&expected) {
		return fr.Element{}, protocol.ErrConsistency
	}
	if err := c.swap(wp.Witness.Index(), increment, newRoot); err != nil {
		return fr.Element{}, err
	}
	return newRoot, nil
}

// ApplyProof applies an update established by a succinct proof.
// The statement's increment is bounded as in Update, its old root must
// be the held commitment, and proof must convince the installed
// verifier; otherwise ApplyProof rejects with ErrBound, ErrConsistency
// or ErrBadProof respectively.
func (c *Contract) ApplyProof(st *protocol.UpdateStatement, proof []byte) (fr.Element, error) {
	if st == nil {
		return fr.Element{}, protocol.ErrMalformedMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Initialized {
		return fr.Element{}, protocol.ErrUninitialized
	}
	if c.verifier == nil {
		return fr.Element{}, fmt.Errorf("%w: no proof verifier installed", protocol.ErrConfig)
	}
	if !crypto.LessThan(st.Increment, c.policies.MaxIncrement) {
		return fr.Element{}, protocol.ErrBound
	}
	if st.Index >= uint64(1)<<uint(c.policies.TreeHeight-1) {
		return fr.Element{}, protocol.ErrRange
	}
	if !c.root.Equal(&st.OldRoot) {
		return fr.Element{}, protocol.ErrConsistency
	}
	if err := c.verifier.Verify(st, proof); err != nil {
		return fr.Element{}, protocol.ErrBadProof
	}
	if err := c.swap(st.Index, st.Increment, st.NewRoot); err != nil {
		return fr.Element{}, err
	}
	return st.NewRoot, nil
}

// Execute runs a contract call as carried by a transaction, parsing
// its arguments strictly. It returns the commitment after the call.
func (c *Contract) Execute(call *protocol.Call) (fr.Element, error) {
	if call == nil {
		return fr.Element{}, protocol.ErrMalformedMessage
	}
	switch call.Method {
	case protocol.MethodInitState:
		root, err := crypto.ParseElement(call.Root)
		if err != nil {
			return fr.Element{}, protocol.ErrSerialization
		}
		if err := c.InitState(root); err != nil {
			return fr.Element{}, err
		}
		return root, nil
	case protocol.MethodUpdate:
		before, err := crypto.ParseElement(call.NumberBefore)
		if err != nil {
			return fr.Element{}, protocol.ErrSerialization
		}
		increment, err := crypto.ParseElement(call.Increment)
		if err != nil {
			return fr.Element{}, protocol.ErrSerialization
		}
		return c.Update(call.Witness, before, increment)
	case protocol.MethodApplyProof:
		return c.ApplyProof(call.Statement, call.Proof)
	}
	return fr.Element{}, protocol.ErrMalformedMessage
}

// swap must be called with c.mu held.
func (c *Contract) swap(index uint64, increment, newRoot fr.Element) error {
	t := &protocol.Transition{
		Seq:       uint64(len(c.log)),
		Index:     index,
		Increment: increment,
		OldRoot:   c.root,
		NewRoot:   newRoot,
	}
	if c.db != nil {
		if err := merkletreekv.AppendTransition(c.db, t); err != nil {
			return fmt.Errorf("%w: %v", protocol.ErrTransport, err)
		}
	}
	c.log = append(c.log, t)
	c.root = newRoot
	return nil
}
