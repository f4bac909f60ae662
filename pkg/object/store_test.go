package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHashBytesDeterminism(t *testing.T) {
	data := []byte("hello world")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Errorf("HashBytes not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != HashSize*2 {
		t.Errorf("Hash length: got %d, want %d", len(h1), HashSize*2)
	}
}

func TestHashObjectEnvelope(t *testing.T) {
	data := []byte("hello")
	h1 := HashObject(TypeBlob, data)
	h2 := HashBytes(data)
	if h1 == h2 {
		t.Error("HashObject should differ from HashBytes due to envelope")
	}

	// Same type+data => same hash
	h3 := HashObject(TypeBlob, data)
	if h1 != h3 {
		t.Error("HashObject not deterministic")
	}

	// Different type => different hash
	h4 := HashObject(TypeTag, data)
	if h1 == h4 {
		t.Error("Different types should produce different hashes")
	}
}

func TestHashValid(t *testing.T) {
	good := HashBytes([]byte("x"))
	if !good.Valid() {
		t.Errorf("Valid(%q) = false, want true", good)
	}

	bad := []Hash{
		"",
		"abc",
		Hash(strings.Repeat("g", HashSize*2)),
		Hash(strings.ToUpper(string(good))),
		good + "00",
	}
	for _, h := range bad {
		if h.Valid() {
			t.Errorf("Valid(%q) = true, want false", h)
		}
	}
}

func TestStoreWriteRead(t *testing.T) {
	store := NewStore(t.TempDir())

	data := []byte("some file contents\n")
	h, err := store.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !store.Has(h) {
		t.Fatal("Has = false after write")
	}

	objType, got, err := store.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if objType != TypeBlob {
		t.Errorf("type = %q, want %q", objType, TypeBlob)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestStoreWriteIdempotent(t *testing.T) {
	store := NewStore(t.TempDir())

	h1, err := store.Write(TypeBlob, []byte("same"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	h2, err := store.Write(TypeBlob, []byte("same"))
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %q vs %q", h1, h2)
	}
}

func TestStoreReadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	missing := HashObject(TypeBlob, []byte("never written"))
	_, _, err := store.Read(missing)
	if err == nil {
		t.Fatal("Read of missing object succeeded")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want wrapping os.ErrNotExist", err)
	}
}

func TestStoreFanoutLayout(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	h, err := store.Write(TypeBlob, []byte("fanout"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := filepath.Join(root, "objects", string(h[:2]), string(h[2:]))
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected object at %s: %v", want, err)
	}
}

func TestStoreTypedRoundTrips(t *testing.T) {
	store := NewStore(t.TempDir())

	blobHash, err := store.WriteBlob(&Blob{Data: []byte("blob body")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	tree := &TreeObj{Entries: []TreeEntry{
		{Name: "file.txt", Mode: TreeModeFile, TargetHash: blobHash},
	}}
	treeHash, err := store.WriteTree(tree)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	commit := &CommitObj{
		TreeHash:  treeHash,
		Author:    "alice <alice@example.com>",
		Timestamp: 1700000000,
		Message:   "initial",
	}
	commitHash, err := store.WriteCommit(commit)
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	tag := &TagObj{
		TargetHash: commitHash,
		TargetType: TypeCommit,
		Name:       "v1.0.0",
		Tagger:     "alice <alice@example.com>",
		Timestamp:  1700000001,
		Message:    "release",
	}
	tagHash, err := store.WriteTag(tag)
	if err != nil {
		t.Fatalf("WriteTag: %v", err)
	}

	gotBlob, err := store.ReadBlob(blobHash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if !bytes.Equal(gotBlob.Data, []byte("blob body")) {
		t.Errorf("blob content mismatch: %q", gotBlob.Data)
	}

	gotTree, err := store.ReadTree(treeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(gotTree.Entries) != 1 || gotTree.Entries[0].TargetHash != blobHash {
		t.Errorf("tree mismatch: %+v", gotTree)
	}

	gotCommit, err := store.ReadCommit(commitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if gotCommit.TreeHash != treeHash || gotCommit.Message != "initial" {
		t.Errorf("commit mismatch: %+v", gotCommit)
	}

	gotTag, err := store.ReadTag(tagHash)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if gotTag.TargetHash != commitHash || gotTag.TargetType != TypeCommit {
		t.Errorf("tag mismatch: %+v", gotTag)
	}

	// Type mismatch is rejected.
	if _, err := store.ReadBlob(commitHash); err == nil {
		t.Error("ReadBlob of a commit succeeded")
	}
}
