package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/protocol/commitment"
	"github.com/coniks-sys/treesync/protocol/ledger"
	"github.com/coniks-sys/treesync/protocol/syncstore"
)

var testConfig = &Config{
	PollInterval:    time.Millisecond,
	MaxPollInterval: 5 * time.Millisecond,
	FinalityTimeout: 100 * time.Millisecond,
}

// sealingChain seals a block whenever finality is polled.
type sealingChain struct {
	*ledger.Ledger
	beforeBroadcast func()
}

func (c *sealingChain) Broadcast(ctx context.Context, tx *protocol.Transaction) (string, error) {
	if c.beforeBroadcast != nil {
		c.beforeBroadcast()
	}
	return c.Ledger.Broadcast(ctx, tx)
}

func (c *sealingChain) AwaitFinality(ctx context.Context, handle string) (*protocol.TxStatus, error) {
	c.Seal()
	return c.Ledger.AwaitFinality(ctx, handle)
}

// stallingChain never includes transactions in a block.
type stallingChain struct {
	*ledger.Ledger
}

type failingStore struct {
	LocalStore
	writes int
}

func (s *failingStore) WriteSnapshot(ctx context.Context, m *merkletree.MerkleTree, root fr.Element) error {
	s.writes++
	return errors.New("connection reset")
}

type env struct {
	store   *syncstore.Store
	ledger  *ledger.Ledger
	chain   *sealingChain
	signer  *KeySigner
	genesis *merkletree.MerkleTree
}

func newEnv(t *testing.T) *env {
	p := protocol.DefaultPolicies()
	store, err := syncstore.New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	genesis, err := store.InitTree(syncstore.DefaultSeed())
	if err != nil {
		t.Fatal(err)
	}
	c, err := commitment.New(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.InitState(genesis.Root()); err != nil {
		t.Fatal(err)
	}
	l := ledger.New(c)
	l.Subscribe(func(root fr.Element) {
		if err := store.Confirm(root); err != nil {
			t.Error(err)
		}
	})
	key, err := sign.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &env{
		store:   store,
		ledger:  l,
		chain:   &sealingChain{Ledger: l},
		signer:  &KeySigner{ChainID: l.ChainID(), Key: key},
		genesis: genesis,
	}
}

func (e *env) orchestrator(t *testing.T, store SnapshotStore, chain Chain) *Orchestrator {
	if store == nil {
		store = LocalStore{Store: e.store}
	}
	if chain == nil {
		chain = e.chain
	}
	o, err := New(protocol.DefaultPolicies(), store, chain, e.signer, testConfig)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func (e *env) storeRoot(t *testing.T) fr.Element {
	_, root, err := e.store.Read()
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func TestIncrement(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, nil)

	res, err := o.Increment(context.Background(), 10, 9)
	if err != nil {
		t.Fatal(err)
	}
	if res.SyncErr != nil {
		t.Fatal(res.SyncErr)
	}
	want := merkletree.NewTestTree(t, 10, map[uint64]uint64{10: 120}).Root()
	after := crypto.NewElement(120)
	if !res.NewRoot.Equal(&want) || !res.After.Equal(&after) || res.Block != 1 {
		t.Fatal("Unexpected result", res)
	}
	if root, _ := e.ledger.Root(context.Background()); !root.Equal(&want) {
		t.Fatal("Commitment not updated")
	}
	if root := e.storeRoot(t); !root.Equal(&want) {
		t.Fatal("Sync store not updated")
	}

	// the next update starts from the written tree
	if _, err := o.Increment(context.Background(), 10, 19); err != nil {
		t.Fatal(err)
	}
	m, _ := e.store.Tree()
	leaf, _ := m.Leaf(10)
	if v := crypto.NewElement(139); !leaf.Equal(&v) {
		t.Fatal("Unexpected leaf value", crypto.ElementString(leaf))
	}
}

func TestIncrementBound(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, nil)
	if _, err := o.Increment(context.Background(), 10, 20); !errors.Is(err, protocol.ErrBound) {
		t.Fatal("Expect", protocol.ErrBound, "got", err)
	}
	if e.ledger.Pending() != 0 {
		t.Fatal("Bounded update was broadcast")
	}
	if root := e.storeRoot(t); !root.Equal(ptr(e.genesis.Root())) {
		t.Fatal("Sync store changed by a rejected update")
	}
}

func TestIncrementRange(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, nil)
	if _, err := o.Increment(context.Background(), 512, 1); !errors.Is(err, protocol.ErrRange) {
		t.Fatal("Expect", protocol.ErrRange, "got", err)
	}
}

func TestIncrementStaleStore(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, nil)
	// the commitment moves without the sync store
	w, _ := e.genesis.Witness(3)
	if _, err := e.ledger.Contract().Update(w, crypto.NewElement(0), crypto.NewElement(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Increment(context.Background(), 10, 1); !errors.Is(err, protocol.ErrConsistency) {
		t.Fatal("Expect", protocol.ErrConsistency, "got", err)
	}
	if e.ledger.Pending() != 0 {
		t.Fatal("Stale update was broadcast")
	}
}

func TestIncrementLosesRace(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, nil)

	// a competing client gets its update in first
	rival, _ := sign.GenerateKey(nil)
	e.chain.beforeBroadcast = func() {
		e.chain.beforeBroadcast = nil
		w, _ := e.genesis.Witness(3)
		tx, err := protocol.NewTransaction(e.ledger.ChainID(), rival,
			protocol.NewUpdateCall(w, crypto.NewElement(0), crypto.NewElement(5)))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.ledger.Broadcast(context.Background(), tx); err != nil {
			t.Fatal(err)
		}
	}

	res, err := o.Increment(context.Background(), 10, 9)
	if !errors.Is(err, protocol.ErrConsistency) {
		t.Fatal("Expect", protocol.ErrConsistency, "got", err)
	}
	if res != nil {
		t.Fatal("Expect no result for a rejected update")
	}
	if root := e.storeRoot(t); !root.Equal(ptr(e.genesis.Root())) {
		t.Fatal("Sync store written for a rejected update")
	}
	// the rival's write is still accepted
	rivalTree := e.genesis.Clone()
	rivalRoot, _ := rivalTree.SetLeaf(3, crypto.NewElement(5))
	if err := e.store.Write(rivalTree, rivalRoot); err != nil {
		t.Fatal(err)
	}
	// and a retry after refetching succeeds
	if _, err := o.Increment(context.Background(), 10, 9); err != nil {
		t.Fatal(err)
	}
}

func TestIncrementFinalityTimeout(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, stallingChain{e.ledger})
	_, err := o.Increment(context.Background(), 10, 9)
	if !errors.Is(err, protocol.ErrTransport) || !errors.Is(err, ErrFinalityTimeout) {
		t.Fatal("Expect a finality timeout, got", err)
	}
	if root := e.storeRoot(t); !root.Equal(ptr(e.genesis.Root())) {
		t.Fatal("Sync store written before finality")
	}
}

func TestNewRejectsUnboundedPolling(t *testing.T) {
	e := newEnv(t)
	for _, cfg := range []*Config{
		{PollInterval: time.Millisecond},
		{MaxPollInterval: time.Millisecond, FinalityTimeout: time.Second},
		{PollInterval: time.Second, MaxPollInterval: time.Millisecond, FinalityTimeout: time.Second},
	} {
		_, err := New(protocol.DefaultPolicies(), LocalStore{Store: e.store},
			stallingChain{e.ledger}, e.signer, cfg)
		if !errors.Is(err, protocol.ErrConfig) {
			t.Fatalf("Expect %v for %+v, got %v", protocol.ErrConfig, cfg, err)
		}
	}
}

func TestIncrementSyncFailure(t *testing.T) {
	e := newEnv(t)
	store := &failingStore{LocalStore: LocalStore{Store: e.store}}
	o := e.orchestrator(t, store, nil)

	res, err := o.Increment(context.Background(), 10, 9)
	if err != nil {
		t.Fatal("A sync store failure is not an update failure:", err)
	}
	if !errors.Is(res.SyncErr, protocol.ErrTransport) || store.writes != 1 {
		t.Fatal("Expect a transport error in the result, got", res.SyncErr)
	}
	if root, _ := e.ledger.Root(context.Background()); !root.Equal(&res.NewRoot) {
		t.Fatal("Commitment must stand despite the sync failure")
	}

	// recovery from the transition log
	root, err := e.store.Rebuild(e.ledger.Transitions(0))
	if err != nil {
		t.Fatal(err)
	}
	if !root.Equal(&res.NewRoot) {
		t.Fatal("Rebuilt tree doesn't match the commitment")
	}
}

type fakeProver struct {
	block bool
	input *ProofInput
}

func (p *fakeProver) Prove(ctx context.Context, in *ProofInput) ([]byte, error) {
	p.input = in
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte("proof"), nil
}

type acceptingVerifier struct{}

func (acceptingVerifier) Verify(st *protocol.UpdateStatement, proof []byte) error {
	if string(proof) != "proof" {
		return errors.New("bad proof")
	}
	return nil
}

func TestIncrementWithProof(t *testing.T) {
	e := newEnv(t)
	e.ledger.Contract().SetVerifier(acceptingVerifier{})
	o := e.orchestrator(t, nil, nil)
	p := &fakeProver{}
	o.SetProver(p)

	res, err := o.Increment(context.Background(), 10, 9)
	if err != nil {
		t.Fatal(err)
	}
	if p.input == nil || p.input.Statement.Index != 10 || !p.input.Statement.NewRoot.Equal(&res.NewRoot) {
		t.Fatal("Unexpected prover input")
	}
	before := crypto.NewElement(111)
	if !p.input.Before.Equal(&before) || len(p.input.Witness) != 9 {
		t.Fatal("Unexpected private prover input")
	}
	if root := e.storeRoot(t); !root.Equal(&res.NewRoot) {
		t.Fatal("Sync store not updated")
	}
}

func TestCancelBeforeSubmission(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, nil)
	o.SetProver(&fakeProver{block: true})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := o.Increment(ctx, 10, 9); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Expect", context.DeadlineExceeded, "got", err)
	}
	if e.ledger.Pending() != 0 {
		t.Fatal("Cancelled update was broadcast")
	}
}

func TestInitializeAndStatus(t *testing.T) {
	p := protocol.DefaultPolicies()
	store, _ := syncstore.New(p, nil)
	genesis, err := store.InitTree(nil)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := commitment.New(p)
	l := ledger.New(c)
	key, _ := sign.GenerateKey(nil)
	o, err := New(p, LocalStore{Store: store}, &sealingChain{Ledger: l},
		&KeySigner{ChainID: l.ChainID(), Key: key}, testConfig)
	if err != nil {
		t.Fatal(err)
	}

	r, err := o.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Initialized || r.InSync {
		t.Fatal("Expect an uninitialized commitment")
	}

	res, err := o.Initialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r := genesis.Root(); !res.NewRoot.Equal(&r) {
		t.Fatal("Unexpected genesis commitment")
	}
	r, err = o.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !r.Initialized || !r.InSync {
		t.Fatal("Expect the store and the commitment to agree")
	}

	if _, err := o.Initialize(context.Background()); !errors.Is(err, protocol.ErrAlreadyInitialized) {
		t.Fatal("Expect", protocol.ErrAlreadyInitialized, "got", err)
	}
}

func ptr(e fr.Element) *fr.Element {
	return &e
}
