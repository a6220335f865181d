package utils

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestUInt32ToBytes(t *testing.T) {
	numInt := uint32(42)
	b := UInt32ToBytes(numInt)
	if binary.LittleEndian.Uint32(b) != numInt {
		t.Fatal("Conversion to bytes looks wrong!")
	}
}

func TestULongToBytes(t *testing.T) {
	numInt := uint64(42)
	b := ULongToBytes(numInt)
	if binary.LittleEndian.Uint64(b) != numInt {
		t.Fatal("Conversion to bytes looks wrong!")
	}
}

func TestLongToBytes(t *testing.T) {
	numInt := int64(42)
	b := LongToBytes(numInt)
	if int64(binary.LittleEndian.Uint64(b)) != numInt {
		t.Fatal("Conversion to bytes looks wrong!")
	}
	numInt = int64(-42)
	b = LongToBytes(numInt)
	if int64(binary.LittleEndian.Uint64(b)) != numInt {
		t.Fatal("Conversion to bytes looks wrong!")
	}
}

func TestBytesToULong(t *testing.T) {
	v, err := BytesToULong(ULongToBytes(1 << 40))
	if err != nil {
		t.Fatal(err)
	}
	if v != 1<<40 {
		t.Fatal("Round trip failed", v)
	}
	if _, err := BytesToULong([]byte{1, 2}); err == nil {
		t.Fatal("Expect an error for a short buffer")
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("sign.priv", "/etc/treesync/config.toml"); got != "/etc/treesync/sign.priv" {
		t.Error("Unexpected path", got)
	}
	if got := ResolvePath("/tmp/sign.priv", "/etc/treesync/config.toml"); got != "/tmp/sign.priv" {
		t.Error("Absolute paths must be kept", got)
	}
}

func TestWriteFileRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := WriteFile(file, []byte("a"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(file, []byte("b"), 0600); err == nil {
		t.Fatal("Expect an error when the file exists")
	}
	b, _ := os.ReadFile(file)
	if string(b) != "a" {
		t.Fatal("File was overwritten")
	}
}
