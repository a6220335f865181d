package merkletreekv

import (
	"bytes"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/crypto/hasher"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/storage/kv"
)

// StoreSnapshot stores the dense snapshot of m into the db under
// the given slot, replacing the tree previously stored there.
func StoreSnapshot(db kv.DB, slot byte, m *merkletree.MerkleTree) error {
	buff, err := encodeTree(m)
	if err != nil {
		return err
	}
	wb := db.NewBatch()
	wb.Put(snapshotKey(slot), buff)
	return db.Write(wb)
}

// LoadSnapshot reconstructs the tree stored under slot. The stored
// snapshot goes through the same validation as one received from a
// client, so a corrupted record is reported rather than served.
func LoadSnapshot(db kv.DB, slot byte, h hasher.TreeHasher) (*merkletree.MerkleTree, error) {
	bbuff, err := db.Get(snapshotKey(slot))
	if err != nil {
		return nil, err
	}
	s, err := merkletree.DecodeSnapshot(bytes.NewReader(bbuff))
	if err != nil {
		return nil, err
	}
	return merkletree.FromSnapshot(s, h)
}

// StoreConfirmed atomically stores m as the current tree together with
// the confirmed commitment root it was written against.
func StoreConfirmed(db kv.DB, m *merkletree.MerkleTree, root fr.Element) error {
	buff, err := encodeTree(m)
	if err != nil {
		return err
	}
	wb := db.NewBatch()
	wb.Put(snapshotKey(CurrentSlot), buff)
	wb.Put([]byte{ConfirmedRootIdentifier}, elementBytes(root))
	return db.Write(wb)
}

// StoreConfirmedRoot records root as the last confirmed commitment
// without touching the stored trees.
func StoreConfirmedRoot(db kv.DB, root fr.Element) error {
	return db.Put([]byte{ConfirmedRootIdentifier}, elementBytes(root))
}

// LoadConfirmedRoot loads the last confirmed commitment. The boolean
// is false if none was ever recorded.
func LoadConfirmedRoot(db kv.DB) (fr.Element, bool, error) {
	return loadElement(db, []byte{ConfirmedRootIdentifier})
}

func encodeTree(m *merkletree.MerkleTree) ([]byte, error) {
	s, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	buff := new(bytes.Buffer)
	if err := merkletree.EncodeSnapshot(buff, s); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

func snapshotKey(slot byte) []byte {
	return []byte{SnapshotIdentifier, slot}
}

func elementBytes(e fr.Element) []byte {
	b := e.Bytes()
	return b[:]
}

func loadElement(db kv.DB, key []byte) (fr.Element, bool, error) {
	var e fr.Element
	v, ok, err := kv.GetOptional(db, key)
	if err != nil || !ok {
		return e, false, err
	}
	if len(v) != fr.Bytes {
		return e, false, kv.ErrorBadBufferLength
	}
	if err := e.SetBytesCanonical(v); err != nil {
		return e, false, err
	}
	return e, true, nil
}
