package protocol

import (
	"testing"

	"github.com/coniks-sys/treesync/merkletree"
)

func TestValidateResponse(t *testing.T) {
	for _, tc := range []struct {
		name string
		res  *Response
		want error
	}{
		{"error", NewErrorResponse(ErrStaleSnapshot), ErrStaleSnapshot},
		{"success", NewSuccessResponse(), nil},
		{"unknown code", &Response{Error: ErrorCode(7)}, ErrMalformedMessage},
		{"snapshot without tree", NewSnapshotResponse(nil, "1"), ErrMalformedMessage},
		{"snapshot", NewSnapshotResponse(&merkletree.Snapshot{}, "1"), nil},
		{"receipt", NewTxReceipt("h"), nil},
		{"empty receipt", NewTxReceipt(""), ErrMalformedMessage},
		{"applied without root", NewTxStatusResponse(&TxStatus{Handle: "h", State: TxApplied}), ErrMalformedMessage},
		{"pending", NewTxStatusResponse(&TxStatus{Handle: "h", State: TxPending}), nil},
		{"root", NewRootResponse("0", true, 1), nil},
		{"uninitialized root", NewRootResponse("", false, 0), nil},
		{"transitions", NewTransitionsResponse(nil), nil},
	} {
		if got := tc.res.Validate(); got != tc.want {
			t.Error(tc.name, "expect", tc.want, "got", got)
		}
	}
}

func TestIsReadOnly(t *testing.T) {
	for _, rt := range []int{ReadSnapshotType, GetRootType, TxStatusType, TransitionsType} {
		if !IsReadOnly(rt) {
			t.Error("Expect read-only", rt)
		}
	}
	for _, rt := range []int{WriteSnapshotType, InitTreeType, SubmitTxType} {
		if IsReadOnly(rt) {
			t.Error("Expect writing", rt)
		}
	}
}
