package utils

import (
	"os"

	"github.com/coniks-sys/treesync/storage/kv"
	"github.com/coniks-sys/treesync/storage/kv/leveldbkv"
)

// WithDB creates a temporary leveldb-backed kv.DB, passes it to f and
// removes it afterwards. It is meant for _tests_.
func WithDB(f func(kv.DB)) {
	dir, err := os.MkdirTemp("", "treesync")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	db, err := leveldbkv.OpenDB(dir)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	f(db)
}
