// Package hasher defines the hash function interface used by the
// authenticated tree and keeps a registry of the available implementations.
// Implementations register themselves on import.
package hasher

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// TreeHasher provides the two-to-one compression function
// used for the interior nodes of the authenticated tree.
type TreeHasher interface {
	// ID returns the name of the hash function.
	ID() string
	// HashInterior computes the hash of an interior node as H(left, right).
	// The inputs won't be mutated.
	HashInterior(left, right *fr.Element) fr.Element
}

var hashers = make(map[string]func() TreeHasher)

// RegisterHasher registers a hasher constructor for use.
// It panics if a hasher with the same ID is already registered.
func RegisterHasher(h string, f func() TreeHasher) {
	if _, ok := hashers[h]; ok {
		panic(fmt.Sprintf("RegisterHasher(%v) is already registered", h))
	}
	hashers[h] = f
}

// Hasher returns a new TreeHasher identified by the given string.
// If no such hasher exists, it returns an error.
func Hasher(h string) (TreeHasher, error) {
	if f, ok := hashers[h]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("Hasher(%v) is unknown hasher", h)
}
