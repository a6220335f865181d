// Defines constants representing the types of errors that the
// commitment contract, the sync store or a client may report.

package protocol

import (
	"errors"

	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/merkletree"
)

// An ErrorCode represents the result of a request or of a check.
// Codes other than ReqSuccess and ReqPending are errors.
type ErrorCode int

// The error taxonomy. Bound and consistency rejections are terminal for
// the submitted update: retrying the same witness can never succeed.
const (
	ReqSuccess ErrorCode = iota + 100
	ReqPending

	ErrConfig
	ErrRange
	ErrBound
	ErrConsistency
	ErrTransport
	ErrSerialization
	ErrMalformedMessage
	ErrAlreadyInitialized
	ErrUninitialized
	ErrStaleSnapshot
	ErrBadProof
	ErrBadSignature
	ErrDuplicateTx
	ErrUnknownTx
	ErrInternal
)

var (
	// Errors contains the codes that represent errors.
	Errors = map[ErrorCode]bool{
		ErrConfig:             true,
		ErrRange:              true,
		ErrBound:              true,
		ErrConsistency:        true,
		ErrTransport:          true,
		ErrSerialization:      true,
		ErrMalformedMessage:   true,
		ErrAlreadyInitialized: true,
		ErrUninitialized:      true,
		ErrStaleSnapshot:      true,
		ErrBadProof:           true,
		ErrBadSignature:       true,
		ErrDuplicateTx:        true,
		ErrUnknownTx:          true,
		ErrInternal:           true,
	}

	errorMessages = map[ErrorCode]string{
		ReqSuccess:            "[treesync] Successful request",
		ReqPending:            "[treesync] Request is pending",
		ErrConfig:             "[treesync] Invalid configuration",
		ErrRange:              "[treesync] Index out of range",
		ErrBound:              "[treesync] Increment exceeds the allowed bound",
		ErrConsistency:        "[treesync] Witness doesn't match the current commitment",
		ErrTransport:          "[treesync] Transport failure",
		ErrSerialization:      "[treesync] Malformed snapshot or field element",
		ErrMalformedMessage:   "[treesync] Malformed message",
		ErrAlreadyInitialized: "[treesync] Commitment is already initialized",
		ErrUninitialized:      "[treesync] Commitment is not initialized",
		ErrStaleSnapshot:      "[treesync] Snapshot is based on a stale commitment",
		ErrBadProof:           "[treesync] Update proof is invalid",
		ErrBadSignature:       "[treesync] Transaction signature is invalid",
		ErrDuplicateTx:        "[treesync] Transaction was already submitted",
		ErrUnknownTx:          "[treesync] Unknown transaction",
		ErrInternal:           "[treesync] Internal error",
	}
)

// Error returns the message of the code.
func (e ErrorCode) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return errorMessages[ErrInternal]
}

// Is reports whether e is a kind of target. A stale snapshot is a
// consistency failure.
func (e ErrorCode) Is(target error) bool {
	return e == ErrStaleSnapshot && target == ErrConsistency
}

// CodeOf maps err to an ErrorCode. Codes wrapped anywhere in the chain
// win; otherwise the sentinel errors of the lower layers are mapped to
// the taxonomy. Anything else is ErrInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ReqSuccess
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	switch {
	case errors.Is(err, merkletree.ErrInvalidHeight),
		errors.Is(err, sign.ErrBadKeyLength):
		return ErrConfig
	case errors.Is(err, merkletree.ErrIndexOutOfRange):
		return ErrRange
	case errors.Is(err, merkletree.ErrWitnessLength):
		return ErrConsistency
	case errors.Is(err, merkletree.ErrMalformedSnapshot),
		errors.Is(err, merkletree.ErrInconsistentSnapshot),
		errors.Is(err, merkletree.ErrSnapshotTooLarge),
		errors.Is(err, crypto.ErrNonCanonical):
		return ErrSerialization
	}
	return ErrInternal
}
