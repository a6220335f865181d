// This module implements the client side of the sync protocol. An
// Orchestrator fetches the tree from the sync store, proves an update
// against the commitment, submits it and, only once the update is
// final, writes the updated tree back to the sync store.

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/protocol"
)

var (
	// ErrFinalityTimeout indicates a submitted transaction whose fate
	// is unknown because polling gave up. It comes wrapped in an
	// ErrTransport.
	ErrFinalityTimeout = errors.New("[client] Timed out waiting for finality")
)

// A Result describes an update the commitment accepted.
// SyncErr is set if the sync store couldn't be brought up to date
// afterwards. The update stands regardless; the sync store can be
// rebuilt from the transition log.
type Result struct {
	Handle  string
	Index   uint64
	Before  fr.Element
	After   fr.Element
	OldRoot fr.Element
	NewRoot fr.Element
	Block   uint64
	SyncErr error
}

// A Report compares the commitment with the tree of the sync store.
type Report struct {
	Initialized bool
	ChainRoot   fr.Element
	StoreRoot   fr.Element
	InSync      bool
}

// An Orchestrator sequences updates between a sync store and a chain.
// Updates are confirm-then-apply: the sync store only ever receives
// trees whose root the commitment contract accepted.
type Orchestrator struct {
	policies *protocol.Policies
	hasher   hasher.TreeHasher
	cfg      *Config
	store    SnapshotStore
	chain    Chain
	signer   Signer
	prover   Prover
}

// New returns an orchestrator for a deployment governed by p.
// If cfg is nil, DefaultConfig is used; otherwise it must be valid.
func New(p *protocol.Policies, store SnapshotStore, chain Chain, signer Signer,
	cfg *Config) (*Orchestrator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	h, err := p.Hasher()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		policies: p,
		hasher:   h,
		cfg:      cfg,
		store:    store,
		chain:    chain,
		signer:   signer,
	}, nil
}

// SetProver makes the orchestrator submit succinct proofs produced by
// p instead of witnesses.
func (o *Orchestrator) SetProver(p Prover) {
	o.prover = p
}

// Initialize submits the root of the sync store's tree as the genesis
// commitment and waits for it to be final.
func (o *Orchestrator) Initialize(ctx context.Context) (*Result, error) {
	m, err := o.fetch(ctx)
	if err != nil {
		return nil, err
	}
	root := m.Root()
	st, handle, err := o.submit(ctx, protocol.NewInitStateCall(root))
	if err != nil {
		return nil, err
	}
	return &Result{
		Handle:  handle,
		NewRoot: root,
		Block:   st.Block,
	}, nil
}

// Increment adds delta to leaf index.
//
// Increment rejects with ErrBound if delta is not below the policy's
// MaxIncrement, and with ErrConsistency if the sync store's tree
// doesn't match the commitment; the caller must refetch then. The same
// codes are returned if the contract rejects the submitted update. Up
// to the submission, ctx cancels the update. Afterwards the update can
// no longer be withdrawn and Increment polls for its finality, within
// the bounds of the Config. If polling gives up, Increment returns
// ErrTransport wrapping ErrFinalityTimeout. In every failure case
// nothing is written to the sync store.
func (o *Orchestrator) Increment(ctx context.Context, index, delta uint64) (*Result, error) {
	if delta >= o.policies.MaxIncrement {
		return nil, fmt.Errorf("%w: %d is not below %d", protocol.ErrBound, delta, o.policies.MaxIncrement)
	}
	m, err := o.fetch(ctx)
	if err != nil {
		return nil, err
	}
	before, err := m.Leaf(index)
	if err != nil {
		return nil, fmt.Errorf("%w: leaf %d", protocol.ErrRange, index)
	}
	w, err := m.Witness(index)
	if err != nil {
		return nil, fmt.Errorf("%w: leaf %d", protocol.ErrRange, index)
	}

	chainRoot, err := o.chain.Root(ctx)
	if err != nil {
		return nil, wrapTransport(err)
	}
	oldRoot := m.Root()
	if !oldRoot.Equal(&chainRoot) {
		return nil, fmt.Errorf("%w: sync store is behind the commitment", protocol.ErrConsistency)
	}

	increment := crypto.NewElement(delta)
	var after fr.Element
	after.Add(&before, &increment)
	next := m.Clone()
	newRoot, err := next.SetLeaf(index, after)
	if err != nil {
		return nil, err
	}

	call := protocol.NewUpdateCall(w, before, increment)
	if o.prover != nil {
		st := &protocol.UpdateStatement{
			OldRoot:   oldRoot,
			NewRoot:   newRoot,
			Increment: increment,
			Index:     index,
		}
		proof, err := o.prover.Prove(ctx, &ProofInput{
			Statement: st,
			Witness:   w,
			Before:    before,
		})
		if err != nil {
			return nil, err
		}
		call = protocol.NewApplyProofCall(st, proof)
	}

	st, handle, err := o.submit(ctx, call)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Handle:  handle,
		Index:   index,
		Before:  before,
		After:   after,
		OldRoot: oldRoot,
		NewRoot: newRoot,
		Block:   st.Block,
	}
	if confirmed, err := crypto.ParseElement(st.NewRoot); err != nil || !confirmed.Equal(&newRoot) {
		// the contract moved to a root this tree doesn't have
		res.SyncErr = fmt.Errorf("%w: confirmed root %q", protocol.ErrConsistency, st.NewRoot)
		return res, nil
	}
	if err := o.store.WriteSnapshot(context.WithoutCancel(ctx), next, newRoot); err != nil {
		res.SyncErr = wrapTransport(err)
	}
	return res, nil
}

// Status compares the commitment with the root of the sync store.
func (o *Orchestrator) Status(ctx context.Context) (*Report, error) {
	m, err := o.fetch(ctx)
	if err != nil {
		return nil, err
	}
	r := &Report{StoreRoot: m.Root()}
	chainRoot, err := o.chain.Root(ctx)
	switch {
	case errors.Is(err, protocol.ErrUninitialized):
		return r, nil
	case err != nil:
		return nil, wrapTransport(err)
	}
	r.Initialized = true
	r.ChainRoot = chainRoot
	r.InSync = chainRoot.Equal(&r.StoreRoot)
	return r, nil
}

func (o *Orchestrator) fetch(ctx context.Context) (*merkletree.MerkleTree, error) {
	m, err := o.store.ReadSnapshot(ctx)
	if err != nil {
		return nil, wrapTransport(err)
	}
	if m.Height() != o.policies.TreeHeight {
		return nil, fmt.Errorf("%w: tree of height %d", protocol.ErrConfig, m.Height())
	}
	return m, nil
}

// submit signs and broadcasts call, then polls until it is final.
// It returns an error unless the call was applied.
func (o *Orchestrator) submit(ctx context.Context, call *protocol.Call) (*protocol.TxStatus, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	tx, err := o.signer.Sign(call)
	if err != nil {
		return nil, "", err
	}
	handle, err := o.chain.Broadcast(ctx, tx)
	if err != nil {
		return nil, "", wrapTransport(err)
	}
	st, err := o.await(context.WithoutCancel(ctx), handle)
	if err != nil {
		return nil, handle, err
	}
	if st.State == protocol.TxRejected {
		reason := st.Reason
		if !protocol.Errors[reason] {
			reason = protocol.ErrInternal
		}
		return st, handle, fmt.Errorf("%w: transaction %s rejected in block %d", reason, handle, st.Block)
	}
	return st, handle, nil
}

func (o *Orchestrator) await(ctx context.Context, handle string) (*protocol.TxStatus, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.PollInterval
	b.MaxInterval = o.cfg.MaxPollInterval
	b.MaxElapsedTime = o.cfg.FinalityTimeout

	var final *protocol.TxStatus
	err := backoff.Retry(func() error {
		st, err := o.chain.AwaitFinality(ctx, handle)
		switch {
		case errors.Is(err, protocol.ErrUnknownTx):
			return backoff.Permanent(err)
		case err != nil:
			return err
		case st.State == protocol.TxPending:
			return protocol.ReqPending
		}
		final = st
		return nil
	}, backoff.WithContext(b, ctx))

	switch {
	case err == nil:
		return final, nil
	case errors.Is(err, protocol.ErrUnknownTx):
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", protocol.ErrTransport, ErrFinalityTimeout)
}

// wrapTransport keeps errors that carry an ErrorCode and reports
// anything else as a transport failure.
func wrapTransport(err error) error {
	var code protocol.ErrorCode
	if errors.As(err, &code) || protocol.CodeOf(err) != protocol.ErrInternal {
		return err
	}
	return fmt.Errorf("%w: %v", protocol.ErrTransport, err)
}
