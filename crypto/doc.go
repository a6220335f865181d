// Package crypto contains the basic cryptographic routines used by treesync:
// hashing arbitrary data (Digest) with sha3 (shake128), generating random
// bytes, and the canonical text encoding of BN254 scalar field elements.
// Tree hashing lives in crypto/hasher and signing in crypto/sign.
package crypto
