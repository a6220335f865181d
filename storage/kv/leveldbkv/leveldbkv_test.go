package leveldbkv

import (
	"bytes"
	"testing"

	"github.com/coniks-sys/treesync/storage/kv"
)

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := OpenDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	wb := db.NewBatch()
	wb.Put([]byte("key"), []byte("value"))
	if err := db.Write(wb); err != nil {
		t.Fatal(err)
	}
	v, err := db.Get([]byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(v, []byte("value")) {
		t.Fatal("Unexpected value", v)
	}
	if err := db.Delete([]byte("key")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get([]byte("key")); !kv.IsNotFound(db, err) {
		t.Fatal("Expect", db.ErrNotFound(), "got", err)
	}
}
