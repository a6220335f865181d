package crypto

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

var (
	// ErrNonCanonical indicates a field element whose text form is not
	// the canonical base-10 representation of a reduced value.
	ErrNonCanonical = errors.New("[crypto] Non-canonical field element")
)

// ParseElement parses the canonical base-10 encoding of a field element.
// It rejects signs, leading zeros, non-digit characters and any value
// that is not strictly smaller than the field modulus.
func ParseElement(s string) (fr.Element, error) {
	var e fr.Element
	if len(s) == 0 || (len(s) > 1 && s[0] == '0') {
		return e, ErrNonCanonical
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return e, ErrNonCanonical
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Cmp(fr.Modulus()) >= 0 {
		return e, ErrNonCanonical
	}
	e.SetBigInt(v)
	return e, nil
}

// ElementString returns the canonical base-10 encoding of e.
func ElementString(e fr.Element) string {
	return e.BigInt(new(big.Int)).String()
}

// NewElement returns the field element holding v.
func NewElement(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// LessThan reports whether the integer value of e is strictly smaller
// than bound.
func LessThan(e fr.Element, bound uint64) bool {
	if !e.IsUint64() {
		return false
	}
	return e.Uint64() < bound
}
