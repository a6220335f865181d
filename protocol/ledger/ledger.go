// This module implements a local ledger: the stand-in for the chain
// the commitment contract is deployed on. It accepts signed
// transactions, executes them in blocks and reports their finality.

package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/google/uuid"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/protocol/commitment"
)

type entry struct {
	tx     *protocol.Transaction
	status protocol.TxStatus
}

// A Ledger orders transactions for one commitment contract.
// Transactions are queued by Broadcast and executed, in order, when a
// block is sealed. A Ledger is safe for concurrent use.
type Ledger struct {
	mu          sync.Mutex
	contract    *commitment.Contract
	chainID     []byte
	accounts    map[string]bool
	pending     []*entry
	txs         map[string]*entry
	seen        map[string]bool
	block       uint64
	subscribers []func(root fr.Element)
}

// New returns a ledger executing transactions against contract.
func New(contract *commitment.Contract) *Ledger {
	return &Ledger{
		contract: contract,
		chainID:  protocol.ChainID(contract.Policies()),
		accounts: make(map[string]bool),
		txs:      make(map[string]*entry),
		seen:     make(map[string]bool),
	}
}

// ChainID returns the identifier transactions must be bound to.
func (l *Ledger) ChainID() []byte {
	return l.chainID
}

// Contract returns the contract the ledger executes transactions on.
func (l *Ledger) Contract() *commitment.Contract {
	return l.contract
}

// Register allows pk to send transactions. A ledger without any
// registered account accepts transactions from every sender.
func (l *Ledger) Register(pk sign.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[string(pk)] = true
}

// Subscribe registers f to be called with the new commitment whenever
// a sealed block changes it. f runs before the statuses of the block
// become visible, and must not call back into the ledger.
func (l *Ledger) Subscribe(f func(root fr.Element)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, f)
}

// Broadcast queues tx for the next block and returns the handle its
// status can be polled with. It returns ErrBadSignature if tx isn't
// properly signed by a registered account, ErrMalformedMessage if tx
// is bound to another chain and ErrDuplicateTx if tx was already
// broadcast.
func (l *Ledger) Broadcast(ctx context.Context, tx *protocol.Transaction) (string, error) {
	if tx == nil {
		return "", protocol.ErrMalformedMessage
	}
	if err := tx.Verify(); err != nil {
		return "", err
	}
	if !bytes.Equal(tx.ChainID, l.chainID) {
		return "", protocol.ErrMalformedMessage
	}
	hash, err := tx.Hash()
	if err != nil {
		return "", err
	}
	key := hex.EncodeToString(hash)

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.accounts) > 0 && !l.accounts[string(tx.Sender)] {
		return "", protocol.ErrBadSignature
	}
	if l.seen[key] {
		return "", protocol.ErrDuplicateTx
	}
	handle := uuid.NewString()
	e := &entry{
		tx: tx,
		status: protocol.TxStatus{
			Handle: handle,
			State:  protocol.TxPending,
		},
	}
	l.seen[key] = true
	l.txs[handle] = e
	l.pending = append(l.pending, e)
	return handle, nil
}

// AwaitFinality reports the status of the transaction identified by
// handle without blocking. A pending status means the transaction
// hasn't been included in a block yet.
func (l *Ledger) AwaitFinality(ctx context.Context, handle string) (*protocol.TxStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.txs[handle]
	if !ok {
		return nil, protocol.ErrUnknownTx
	}
	st := e.status
	return &st, nil
}

// Root returns the commitment held by the contract.
func (l *Ledger) Root(ctx context.Context) (fr.Element, error) {
	return l.contract.Root()
}

// Head returns the commitment, whether the contract is initialized and
// the number of the latest sealed block.
func (l *Ledger) Head() (fr.Element, bool, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	root, err := l.contract.Root()
	return root, err == nil, l.block
}

// Transitions returns the transitions the contract accepted, numbered
// from and later.
func (l *Ledger) Transitions(from uint64) []*protocol.Transition {
	return l.contract.Transitions(from)
}

// Pending returns the number of transactions waiting for a block.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Seal executes the pending transactions in the order they were
// broadcast and returns the number of the new block. Sealing without
// pending transactions creates no block.
func (l *Ledger) Seal() uint64 {
	block, _ := l.SealBlock()
	return block
}

// SealBlock is Seal that also returns the final statuses of the
// transactions included in the new block.
func (l *Ledger) SealBlock() (uint64, []protocol.TxStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return l.block, nil
	}
	l.block++
	changed := false
	var root fr.Element
	statuses := make([]protocol.TxStatus, 0, len(l.pending))
	for _, e := range l.pending {
		newRoot, err := l.contract.Execute(e.tx.Call)
		e.status.Block = l.block
		if err != nil {
			e.status.State = protocol.TxRejected
			e.status.Reason = protocol.CodeOf(err)
		} else {
			e.status.State = protocol.TxApplied
			e.status.NewRoot = crypto.ElementString(newRoot)
			root = newRoot
			changed = true
		}
		statuses = append(statuses, e.status)
	}
	l.pending = nil
	if changed {
		for _, f := range l.subscribers {
			f(root)
		}
	}
	return l.block, statuses
}
