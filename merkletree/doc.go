/*
Package merkletree implements the authenticated tree kept off-chain by
treesync, along with its inclusion witnesses and snapshot encodings.

Authenticated Tree

MerkleTree is a fixed-height binary Merkle tree whose leaves and nodes
are elements of the BN254 scalar field. The tree has 2^(height-1) leaf
slots. Unwritten leaves hold 0 and every level has a precomputed zero
hash, so only the nodes on paths to written leaves are ever stored.
The root is a pure function of the leaf set: two trees holding the same
leaves have the same root regardless of the order of the writes.

Witness

A Witness is the authentication path of a single leaf. Given a claimed
leaf value it recomputes the root that the rest of the tree commits to.
The commitment contract checks updates with nothing but a witness and
the root it holds.

Snapshots

A Snapshot is the dense fixed-schema encoding of a whole tree exchanged
with the sync store. It is decoded with strict validation.
LegacySnapshot is the sparse nested-map encoding older stores hold.
DecodeTree accepts either form.
*/
package merkletree
