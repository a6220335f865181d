package crypto

import (
	"bytes"
	"testing"
)

func TestDigest(t *testing.T) {
	msg := []byte("test message")
	d := Digest(msg)
	if len(d) != HashSizeByte {
		t.Fatal("Computation of Hash failed.")
	}
	if bytes.Equal(d, make([]byte, HashSizeByte)) {
		t.Fatal("Hash is all zeros.")
	}
	if !bytes.Equal(d, Digest([]byte("test "), []byte("message"))) {
		t.Fatal("Digest should hash the concatenation of its inputs.")
	}
}

func TestMakeRand(t *testing.T) {
	r, err := MakeRand()
	if err != nil {
		t.Fatal(err)
	}
	// check if hashed the random output:
	if len(r) != HashSizeByte {
		t.Fatal("Looks like Digest wasn't called correctly.")
	}
	r2, err := MakeRand()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(r, r2) {
		t.Fatal("Two random outputs are identical.")
	}
}
