package client

import (
	"bytes"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/application"
	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/protocol"
)

// CreateReadSnapshotMsg returns a JSON encoding of
// a protocol.ReadSnapshotRequest.
func CreateReadSnapshotMsg() ([]byte, error) {
	return application.MarshalRequest(protocol.ReadSnapshotType,
		&protocol.ReadSnapshotRequest{})
}

// CreateWriteSnapshotMsg returns a JSON encoding of
// a protocol.WriteSnapshotRequest replacing the stored tree with m,
// stating root as the confirmed commitment.
func CreateWriteSnapshotMsg(m *merkletree.MerkleTree, root fr.Element) ([]byte, error) {
	s, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := merkletree.EncodeSnapshot(&buf, s); err != nil {
		return nil, err
	}
	return application.MarshalRequest(protocol.WriteSnapshotType,
		&protocol.WriteSnapshotRequest{
			Tree: bytes.TrimSpace(buf.Bytes()),
			Root: crypto.ElementString(root),
		})
}

// CreateInitTreeMsg returns a JSON encoding of
// a protocol.InitTreeRequest seeding the given leaves.
func CreateInitTreeMsg(leaves map[uint64]fr.Element) ([]byte, error) {
	req := &protocol.InitTreeRequest{}
	for index, v := range leaves {
		req.Leaves = append(req.Leaves, protocol.LeafValue{
			Index: index,
			Value: crypto.ElementString(v),
		})
	}
	return application.MarshalRequest(protocol.InitTreeType, req)
}

// CreateGetRootMsg returns a JSON encoding of
// a protocol.GetRootRequest.
func CreateGetRootMsg() ([]byte, error) {
	return application.MarshalRequest(protocol.GetRootType,
		&protocol.GetRootRequest{})
}

// CreateSubmitTxMsg returns a JSON encoding of
// a protocol.SubmitTxRequest for the given transaction.
func CreateSubmitTxMsg(tx *protocol.Transaction) ([]byte, error) {
	return application.MarshalRequest(protocol.SubmitTxType,
		&protocol.SubmitTxRequest{Tx: tx})
}

// CreateTxStatusMsg returns a JSON encoding of
// a protocol.TxStatusRequest for the given handle.
func CreateTxStatusMsg(handle string) ([]byte, error) {
	return application.MarshalRequest(protocol.TxStatusType,
		&protocol.TxStatusRequest{Handle: handle})
}

// CreateTransitionsMsg returns a JSON encoding of
// a protocol.TransitionsRequest for the transitions numbered from and
// later.
func CreateTransitionsMsg(from uint64) ([]byte, error) {
	return application.MarshalRequest(protocol.TransitionsType,
		&protocol.TransitionsRequest{From: from})
}
