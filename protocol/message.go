// Defines the message format exchanged between treesync clients and
// the sync store service, and constructors for the response messages.

package protocol

import (
	"encoding/json"

	"github.com/coniks-sys/treesync/merkletree"
)

// The types of requests clients send to the sync store service.
// Requests up to TransitionsType only read state.
const (
	ReadSnapshotType = iota
	GetRootType
	TxStatusType
	TransitionsType
	WriteSnapshotType
	InitTreeType
	SubmitTxType
)

// IsReadOnly reports whether requests of type t leave the service state
// untouched, so that they can be served concurrently.
func IsReadOnly(t int) bool {
	return t <= TransitionsType
}

// A Request message defines the data a client sends to the service
// for a particular request.
type Request struct {
	Type    int
	Request interface{}
}

// A ReadSnapshotRequest asks for the tree currently held by the sync
// store. The response is a SnapshotResponse.
type ReadSnapshotRequest struct{}

// A WriteSnapshotRequest replaces the tree held by the sync store.
// Tree is either a dense Snapshot or a LegacySnapshot. Root is the
// commitment the writer believes is current once its update has been
// confirmed; the store refuses the write if it knows a different
// confirmed commitment, or if Tree doesn't hash to Root.
type WriteSnapshotRequest struct {
	Tree json.RawMessage
	Root string
}

// A LeafValue seeds one leaf of a freshly initialized tree.
type LeafValue struct {
	Index uint64
	Value string
}

// An InitTreeRequest creates the genesis tree, with the given leaves
// set, and makes it both the genesis and the current tree of the store.
// The response is a SnapshotResponse.
type InitTreeRequest struct {
	Leaves []LeafValue
}

// A GetRootRequest asks for the commitment held by the contract.
// The response is a RootResponse.
type GetRootRequest struct{}

// A SubmitTxRequest broadcasts a signed transaction to the ledger.
// The response is a TxReceipt.
type SubmitTxRequest struct {
	Tx *Transaction
}

// A TxStatusRequest polls the status of a submitted transaction.
// The response is a TxStatus.
type TxStatusRequest struct {
	Handle string
}

// A TransitionsRequest asks for the accepted transitions numbered From
// and later. The response is a TransitionsResponse.
type TransitionsRequest struct {
	From uint64
}

// A Response message indicates the result of a request with an error
// code, and carries the payload of a successful request.
type Response struct {
	Error   ErrorCode
	Payload ResponsePayload `json:",omitempty"`
}

// A ResponsePayload is the request-type specific part of a Response.
type ResponsePayload interface{}

// A SnapshotResponse carries the tree held by the sync store and its root.
type SnapshotResponse struct {
	Tree *merkletree.Snapshot
	Root string
}

// A RootResponse carries the commitment held by the contract and the
// number of the latest sealed block.
type RootResponse struct {
	Root        string
	Initialized bool
	Block       uint64
}

// A TxReceipt carries the handle a submitted transaction is tracked by.
type TxReceipt struct {
	Handle string
}

// The states of a submitted transaction.
const (
	TxPending  = "pending"
	TxApplied  = "applied"
	TxRejected = "rejected"
)

// A TxStatus reports the state of a submitted transaction. Once the
// transaction is applied, NewRoot is the commitment it produced; once it
// is rejected, Reason is the failed precondition.
type TxStatus struct {
	Handle  string
	State   string
	Reason  ErrorCode `json:",omitempty"`
	NewRoot string    `json:",omitempty"`
	Block   uint64
}

// A TransitionsResponse carries accepted transitions in order.
type TransitionsResponse struct {
	Transitions []*Transition
}

var _ ResponsePayload = (*SnapshotResponse)(nil)
var _ ResponsePayload = (*RootResponse)(nil)
var _ ResponsePayload = (*TxReceipt)(nil)
var _ ResponsePayload = (*TxStatus)(nil)
var _ ResponsePayload = (*TransitionsResponse)(nil)

// NewErrorResponse creates a new response message indicating the error
// that occurred while the service was processing a request.
func NewErrorResponse(e ErrorCode) *Response {
	return &Response{Error: e}
}

// NewSnapshotResponse creates the response to a ReadSnapshotRequest
// or an InitTreeRequest.
func NewSnapshotResponse(tree *merkletree.Snapshot, root string) *Response {
	return &Response{
		Error: ReqSuccess,
		Payload: &SnapshotResponse{
			Tree: tree,
			Root: root,
		},
	}
}

// NewRootResponse creates the response to a GetRootRequest.
func NewRootResponse(root string, initialized bool, block uint64) *Response {
	return &Response{
		Error: ReqSuccess,
		Payload: &RootResponse{
			Root:        root,
			Initialized: initialized,
			Block:       block,
		},
	}
}

// NewTxReceipt creates the response to a SubmitTxRequest.
func NewTxReceipt(handle string) *Response {
	return &Response{
		Error:   ReqSuccess,
		Payload: &TxReceipt{Handle: handle},
	}
}

// NewTxStatusResponse creates the response to a TxStatusRequest.
func NewTxStatusResponse(st *TxStatus) *Response {
	return &Response{
		Error:   ReqSuccess,
		Payload: st,
	}
}

// NewTransitionsResponse creates the response to a TransitionsRequest.
func NewTransitionsResponse(ts []*Transition) *Response {
	return &Response{
		Error:   ReqSuccess,
		Payload: &TransitionsResponse{Transitions: ts},
	}
}

// NewSuccessResponse creates a response without payload, the answer
// to a WriteSnapshotRequest.
func NewSuccessResponse() *Response {
	return &Response{Error: ReqSuccess}
}

// Validate returns the error carried by msg, or ErrMalformedMessage if
// a successful response lacks the fields its payload needs.
func (msg *Response) Validate() error {
	if Errors[msg.Error] {
		return msg.Error
	}
	if msg.Error != ReqSuccess {
		return ErrMalformedMessage
	}
	switch p := msg.Payload.(type) {
	case nil:
		return nil
	case *SnapshotResponse:
		if p.Tree == nil || p.Root == "" {
			return ErrMalformedMessage
		}
	case *RootResponse:
		if p.Initialized && p.Root == "" {
			return ErrMalformedMessage
		}
	case *TxReceipt:
		if p.Handle == "" {
			return ErrMalformedMessage
		}
	case *TxStatus:
		if p.Handle == "" || (p.State == TxApplied && p.NewRoot == "") {
			return ErrMalformedMessage
		}
	case *TransitionsResponse:
	default:
		return ErrMalformedMessage
	}
	return nil
}
