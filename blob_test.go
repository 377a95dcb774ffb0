// Blob file primitive tests: append/read round-trip, the mapped-file
// write guard, and the mmap toggle.
package rowstore

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestBlobAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	blob, err := createBlob(path)
	if err != nil {
		t.Fatalf("createBlob: %v", err)
	}
	defer blob.Close()

	off1, err := blob.Append([]byte("alpha"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	off2, err := blob.Append([]byte("beta"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if off2 != off1+5 {
		t.Errorf("second offset = %d, want %d", off2, off1+5)
	}

	got, err := blob.Read(off1, 5)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte("alpha")) {
		t.Errorf("read back %q, want alpha", got)
	}
}

func TestBlobCString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	blob, err := createBlob(path)
	if err != nil {
		t.Fatalf("createBlob: %v", err)
	}
	defer blob.Close()

	off, err := blob.AppendCString("hello")
	if err != nil {
		t.Fatalf("appendCString: %v", err)
	}
	s, err := blob.ReadCString(off)
	if err != nil {
		t.Fatalf("readCString: %v", err)
	}
	if s != "hello" {
		t.Errorf("readCString = %q, want hello", s)
	}
}

func TestBlobWriteFailsWhileMapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	blob, err := createBlob(path)
	if err != nil {
		t.Fatalf("createBlob: %v", err)
	}
	defer blob.Close()

	if _, err := blob.Append([]byte("data")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := blob.Map(); err != nil {
		t.Fatalf("map: %v", err)
	}

	if _, err := blob.Append([]byte("more")); err != ErrMapped {
		t.Errorf("append on mapped blob = %v, want ErrMapped", err)
	}

	got, err := blob.Read(0, 4)
	if err != nil {
		t.Fatalf("read after map: %v", err)
	}
	if !bytes.Equal(got, []byte("data")) {
		t.Errorf("mapped read = %q, want data", got)
	}
}

func TestBlobMapEmptyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	blob, err := createBlob(path)
	if err != nil {
		t.Fatalf("createBlob: %v", err)
	}
	defer blob.Close()

	if err := blob.Map(); !Is(err, StateError) {
		t.Errorf("map empty blob = %v, want StateError", err)
	}
}
