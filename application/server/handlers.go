package server

import (
	"context"
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/protocol/syncstore"
)

// HandleRequests validates the request message and passes it to the
// appropriate operation handler according to the request type.
func (server *TreeSyncServer) HandleRequests(req *protocol.Request) *protocol.Response {
	switch req.Type {
	case protocol.ReadSnapshotType:
		if _, ok := req.Request.(*protocol.ReadSnapshotRequest); ok {
			return server.readSnapshot()
		}
	case protocol.GetRootType:
		if _, ok := req.Request.(*protocol.GetRootRequest); ok {
			return server.getRoot()
		}
	case protocol.TxStatusType:
		if msg, ok := req.Request.(*protocol.TxStatusRequest); ok {
			return server.txStatus(msg)
		}
	case protocol.TransitionsType:
		if msg, ok := req.Request.(*protocol.TransitionsRequest); ok {
			return protocol.NewTransitionsResponse(server.ledger.Transitions(msg.From))
		}
	case protocol.WriteSnapshotType:
		if msg, ok := req.Request.(*protocol.WriteSnapshotRequest); ok {
			return server.writeSnapshot(msg)
		}
	case protocol.InitTreeType:
		if msg, ok := req.Request.(*protocol.InitTreeRequest); ok {
			return server.initTree(msg)
		}
	case protocol.SubmitTxType:
		if msg, ok := req.Request.(*protocol.SubmitTxRequest); ok {
			return server.submitTx(msg)
		}
	}

	return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
}

func (server *TreeSyncServer) readSnapshot() *protocol.Response {
	root, err := server.store.Root()
	if err != nil {
		return errorResponse(err)
	}
	key := crypto.ElementString(root)
	if res, ok := server.cache.Get(key); ok {
		return res
	}
	snap, root, err := server.store.Read()
	if err != nil {
		return errorResponse(err)
	}
	res := protocol.NewSnapshotResponse(snap, crypto.ElementString(root))
	server.cache.Add(key, res)
	return res
}

func (server *TreeSyncServer) getRoot() *protocol.Response {
	root, initialized, block := server.ledger.Head()
	if !initialized {
		return protocol.NewRootResponse("", false, block)
	}
	return protocol.NewRootResponse(crypto.ElementString(root), true, block)
}

func (server *TreeSyncServer) txStatus(msg *protocol.TxStatusRequest) *protocol.Response {
	st, err := server.ledger.AwaitFinality(context.Background(), msg.Handle)
	if err != nil {
		return errorResponse(err)
	}
	return protocol.NewTxStatusResponse(st)
}

func (server *TreeSyncServer) writeSnapshot(msg *protocol.WriteSnapshotRequest) *protocol.Response {
	server.Metrics().ObserveSnapshotSize(len(msg.Tree))
	root, err := crypto.ParseElement(msg.Root)
	if err != nil {
		return protocol.NewErrorResponse(protocol.ErrSerialization)
	}
	h, err := server.policies.Hasher()
	if err != nil {
		return errorResponse(err)
	}
	m, err := merkletree.DecodeTree(msg.Tree, h)
	if err != nil {
		return protocol.NewErrorResponse(protocol.ErrSerialization)
	}
	if err := server.store.Write(m, root); err != nil {
		if errors.Is(err, protocol.ErrStaleSnapshot) {
			server.Metrics().IncStaleWrites()
		}
		return errorResponse(err)
	}
	return protocol.NewSuccessResponse()
}

func (server *TreeSyncServer) initTree(msg *protocol.InitTreeRequest) *protocol.Response {
	leaves := syncstore.DefaultSeed()
	if len(msg.Leaves) > 0 {
		leaves = make(map[uint64]fr.Element, len(msg.Leaves))
		for _, l := range msg.Leaves {
			v, err := crypto.ParseElement(l.Value)
			if err != nil {
				return protocol.NewErrorResponse(protocol.ErrSerialization)
			}
			leaves[l.Index] = v
		}
	}
	m, err := server.store.InitTree(leaves)
	if err != nil {
		return errorResponse(err)
	}
	snap, err := m.Snapshot()
	if err != nil {
		return errorResponse(err)
	}
	server.Logger().Info("Initialized the sync store",
		"root", crypto.ElementString(m.Root()))
	return protocol.NewSnapshotResponse(snap, crypto.ElementString(m.Root()))
}

func (server *TreeSyncServer) submitTx(msg *protocol.SubmitTxRequest) *protocol.Response {
	handle, err := server.ledger.Broadcast(context.Background(), msg.Tx)
	if err != nil {
		return errorResponse(err)
	}
	return protocol.NewTxReceipt(handle)
}

func errorResponse(err error) *protocol.Response {
	return protocol.NewErrorResponse(protocol.CodeOf(err))
}
