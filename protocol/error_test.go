package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/merkletree"
)

func TestCodeOf(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want ErrorCode
	}{
		{nil, ReqSuccess},
		{ErrBound, ErrBound},
		{fmt.Errorf("%w: increment 25", ErrBound), ErrBound},
		{merkletree.ErrInvalidHeight, ErrConfig},
		{merkletree.ErrIndexOutOfRange, ErrRange},
		{merkletree.ErrWitnessLength, ErrConsistency},
		{fmt.Errorf("%w: level 1", merkletree.ErrInconsistentSnapshot), ErrSerialization},
		{crypto.ErrNonCanonical, ErrSerialization},
		{errors.New("boom"), ErrInternal},
	} {
		if got := CodeOf(tc.err); got != tc.want {
			t.Error("CodeOf", tc.err, "expect", tc.want, "got", got)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	for code := range Errors {
		if code.Error() == "" {
			t.Error("Missing message for", int(code))
		}
	}
	if ErrorCode(-1).Error() != ErrInternal.Error() {
		t.Error("Unknown codes must read as internal errors")
	}
	if Errors[ReqSuccess] || Errors[ReqPending] {
		t.Error("Success and pending are not errors")
	}
}

func TestStaleSnapshotIsConsistencyError(t *testing.T) {
	err := fmt.Errorf("%w: write refused", ErrStaleSnapshot)
	if !errors.Is(err, ErrConsistency) || !errors.Is(err, ErrStaleSnapshot) {
		t.Fatal("Expect a stale snapshot to be a consistency error")
	}
	if CodeOf(err) != ErrStaleSnapshot {
		t.Fatal("Expect the code to stay", ErrStaleSnapshot)
	}
	if errors.Is(ErrConsistency, ErrStaleSnapshot) || errors.Is(ErrBound, ErrConsistency) {
		t.Fatal("Only stale snapshots are consistency errors")
	}
}
