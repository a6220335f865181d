// Package sign wraps ed25519 signing keys used to authorize
// transactions submitted to the commitment ledger.
package sign

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/ed25519"
)

const (
	// PrivateKeySize is the size of a private signing key in bytes.
	PrivateKeySize = 64
	// PublicKeySize is the size of a public signing key in bytes.
	PublicKeySize = 32
	// SignatureSize is the size of a signature in bytes.
	SignatureSize = 64
)

var (
	// ErrBadKeyLength indicates that a key read from disk or the wire
	// does not have the expected length.
	ErrBadKeyLength = errors.New("[sign] Bad key length")
)

// PrivateKey is an ed25519 private key.
type PrivateKey []byte

// PublicKey is an ed25519 public key.
type PublicKey []byte

// GenerateKey generates a new signing key pair from rnd.
// If rnd is nil, crypto/rand.Reader is used.
func GenerateKey(rnd io.Reader) (PrivateKey, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	_, sk, err := ed25519.GenerateKey(rnd)
	return PrivateKey(sk), err
}

// Sign signs message with key.
func (key PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(key), message)
}

// Public returns the public key corresponding to key.
func (key PrivateKey) Public() (PublicKey, bool) {
	pk, ok := ed25519.PrivateKey(key).Public().(ed25519.PublicKey)
	return PublicKey(pk), ok
}

// Verify reports whether sig is a valid signature of message by pk.
func (pk PublicKey) Verify(message, sig []byte) bool {
	if len(pk) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk), message, sig)
}

// String returns the hex encoding of pk, which is how accounts are
// named in logs and receipts.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// ParsePrivateKey checks the length of b and returns it as a PrivateKey.
func ParsePrivateKey(b []byte) (PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, ErrBadKeyLength
	}
	return PrivateKey(b), nil
}

// ParsePublicKey checks the length of b and returns it as a PublicKey.
func ParsePublicKey(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, ErrBadKeyLength
	}
	return PublicKey(b), nil
}
