package merkletreekv

const (
	// SnapshotIdentifier is the domain separation for stored trees.
	SnapshotIdentifier = 'S'
	// ConfirmedRootIdentifier is the domain separation for the last
	// commitment the sync store saw confirmed.
	ConfirmedRootIdentifier = 'F'
	// CommitmentIdentifier is the domain separation for the root held
	// by the commitment contract.
	CommitmentIdentifier = 'R'
	// TransitionIdentifier is the domain separation for accepted
	// transitions.
	TransitionIdentifier = 'T'
	// TransitionCountIdentifier is the domain separation for the number
	// of accepted transitions.
	TransitionCountIdentifier = 'N'
)

// The slots a tree can be stored in.
const (
	// GenesisSlot holds the tree the commitment was initialized with.
	GenesisSlot = 'G'
	// CurrentSlot holds the latest tree written to the sync store.
	CurrentSlot = 'C'
)
