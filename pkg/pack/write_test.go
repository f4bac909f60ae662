package pack

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/gitpack/pkg/object"
)

// seedStore writes a small blob/tree/commit chain and returns the store and
// the commit hash.
func seedStore(t *testing.T) (*object.Store, object.Hash) {
	t.Helper()
	store := object.NewStore(t.TempDir())

	blobHash, err := store.WriteBlob(&object.Blob{Data: []byte("package main\n\nfunc main() {}\n")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	treeHash, err := store.WriteTree(&object.TreeObj{Entries: []object.TreeEntry{
		{Name: "main.go", Mode: object.TreeModeFile, TargetHash: blobHash},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commitHash, err := store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Author:    "test <test@example.com>",
		Timestamp: 1700000000,
		Message:   "initial",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	return store, commitHash
}

func TestWriteToDirectoryEndToEnd(t *testing.T) {
	store, commitHash := seedStore(t)

	b, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := b.AddRecursively(commitHash); err != nil {
		t.Fatalf("AddRecursively: %v", err)
	}

	dest := t.TempDir()
	result, err := b.WriteToDirectory(dest)
	if err != nil {
		t.Fatalf("WriteToDirectory: %v", err)
	}
	if result.ObjectCount != 3 {
		t.Errorf("ObjectCount = %d, want 3", result.ObjectCount)
	}
	if !result.PackHash.Valid() {
		t.Errorf("PackHash %q is not well-formed", result.PackHash)
	}

	packPath := filepath.Join(dest, "pack-"+string(result.PackHash)+".pack")
	idxPath := filepath.Join(dest, "pack-"+string(result.PackHash)+".idx")
	packData, err := os.ReadFile(packPath)
	if err != nil {
		t.Fatalf("read pack: %v", err)
	}
	idxData, err := os.ReadFile(idxPath)
	if err != nil {
		t.Fatalf("read idx: %v", err)
	}

	pf, err := object.ReadPack(packData)
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if len(pf.Entries) != 3 {
		t.Fatalf("pack has %d entries, want 3", len(pf.Entries))
	}
	for _, entry := range pf.Entries {
		objType, ok := object.StoreType(entry.Type)
		if !ok {
			t.Fatalf("entry at %d has unexpected type %d", entry.Offset, entry.Type)
		}
		want, wantData, err := store.Read(object.HashObject(objType, entry.Data))
		if err != nil {
			t.Fatalf("read back %s entry: %v", objType, err)
		}
		if want != objType || !bytes.Equal(wantData, entry.Data) {
			t.Errorf("entry at %d does not match stored object", entry.Offset)
		}
	}

	idx, err := object.ReadPackIndex(idxData)
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}
	if idx.PackChecksum != pf.Checksum {
		t.Errorf("index records pack checksum %s, pack has %s", idx.PackChecksum, pf.Checksum)
	}
	if _, ok := idx.Find(commitHash); !ok {
		t.Errorf("index does not contain commit %s", commitHash)
	}

	gotHash, err := b.PackHash()
	if err != nil || gotHash != result.PackHash {
		t.Errorf("PackHash() = %s, %v, want %s", gotHash, err, result.PackHash)
	}
	gotCount, err := b.WrittenCount()
	if err != nil || gotCount != 3 {
		t.Errorf("WrittenCount() = %d, %v, want 3", gotCount, err)
	}
}

func TestWriteToDirectoryDeterministicIdentity(t *testing.T) {
	store, commitHash := seedStore(t)

	write := func(recurseFirst bool) object.Hash {
		b, err := New(store)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer b.Close()

		commit, err := store.ReadCommit(commitHash)
		if err != nil {
			t.Fatalf("ReadCommit: %v", err)
		}
		if recurseFirst {
			if err := b.AddRecursively(commitHash); err != nil {
				t.Fatalf("AddRecursively: %v", err)
			}
		} else {
			// Same set, different insertion order.
			if err := b.Add(commit.TreeHash); err != nil {
				t.Fatalf("Add tree: %v", err)
			}
			if err := b.AddRecursively(commitHash); err != nil {
				t.Fatalf("AddRecursively: %v", err)
			}
		}
		result, err := b.WriteToDirectory(t.TempDir())
		if err != nil {
			t.Fatalf("WriteToDirectory: %v", err)
		}
		return result.PackHash
	}

	first := write(true)
	second := write(false)
	if first != second {
		t.Errorf("identity differs across insertion orders: %s vs %s", first, second)
	}
}

func TestWriteToDirectoryRepeatable(t *testing.T) {
	store, commitHash := seedStore(t)

	b, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := b.AddRecursively(commitHash); err != nil {
		t.Fatalf("AddRecursively: %v", err)
	}

	first, err := b.WriteToDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := b.WriteToDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if first.PackHash != second.PackHash || first.ObjectCount != second.ObjectCount {
		t.Errorf("results differ across writes: %+v vs %+v", first, second)
	}
}

func TestWriteToDirectoryDanglingID(t *testing.T) {
	store, _ := seedStore(t)

	b, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := b.Add(fakeID(42)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	dest := t.TempDir()
	if _, err := b.WriteToDirectory(dest); !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("err = %v, want ErrBuildFailed", err)
	}

	// No partial outputs.
	names, err := os.ReadDir(dest)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("destination not clean after failed build: %v", names)
	}
}

func TestWriteToDirectoryBadPaths(t *testing.T) {
	store, commitHash := seedStore(t)

	b, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()
	if err := b.AddRecursively(commitHash); err != nil {
		t.Fatalf("AddRecursively: %v", err)
	}

	if _, err := b.WriteToDirectory(""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("empty path err = %v, want ErrInvalidPath", err)
	}
	if _, err := b.WriteToDirectory("   "); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("blank path err = %v, want ErrInvalidPath", err)
	}

	missing := filepath.Join(t.TempDir(), "no-such-dir")
	if _, err := b.WriteToDirectory(missing); !errors.Is(err, ErrDirectoryNotFound) {
		t.Errorf("missing dir err = %v, want ErrDirectoryNotFound", err)
	}
	if _, statErr := os.Stat(missing); !os.IsNotExist(statErr) {
		t.Errorf("builder created the destination directory")
	}

	file := filepath.Join(t.TempDir(), "regular-file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := b.WriteToDirectory(file); !errors.Is(err, ErrDirectoryNotFound) {
		t.Errorf("file dest err = %v, want ErrDirectoryNotFound", err)
	}
}

func TestWriteToDirectoryEmptySelection(t *testing.T) {
	store, _ := seedStore(t)

	b, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	dest := t.TempDir()
	result, err := b.WriteToDirectory(dest)
	if err != nil {
		t.Fatalf("WriteToDirectory: %v", err)
	}
	if result.ObjectCount != 0 {
		t.Errorf("ObjectCount = %d, want 0", result.ObjectCount)
	}

	packData, err := os.ReadFile(filepath.Join(dest, "pack-"+string(result.PackHash)+".pack"))
	if err != nil {
		t.Fatalf("read pack: %v", err)
	}
	pf, err := object.ReadPack(packData)
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if len(pf.Entries) != 0 {
		t.Errorf("empty pack has %d entries", len(pf.Entries))
	}
}

func TestWriteToDirectoryDeltaRoundTrip(t *testing.T) {
	store := object.NewStore(t.TempDir())

	base := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 40)
	variant := append(append([]byte{}, base...), []byte("trailing line\n")...)

	baseHash, err := store.WriteBlob(&object.Blob{Data: base})
	if err != nil {
		t.Fatalf("WriteBlob base: %v", err)
	}
	variantHash, err := store.WriteBlob(&object.Blob{Data: variant})
	if err != nil {
		t.Fatalf("WriteBlob variant: %v", err)
	}

	b, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()
	if err := b.Add(baseHash); err != nil {
		t.Fatalf("Add base: %v", err)
	}
	if err := b.Add(variantHash); err != nil {
		t.Fatalf("Add variant: %v", err)
	}

	dest := t.TempDir()
	result, err := b.WriteToDirectory(dest)
	if err != nil {
		t.Fatalf("WriteToDirectory: %v", err)
	}

	packData, err := os.ReadFile(filepath.Join(dest, "pack-"+string(result.PackHash)+".pack"))
	if err != nil {
		t.Fatalf("read pack: %v", err)
	}
	pf, err := object.ReadPack(packData)
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}

	var sawDelta bool
	for _, entry := range pf.Entries {
		if entry.IsDelta() {
			sawDelta = true
		}
	}
	if !sawDelta {
		t.Error("similar blobs produced no delta entry")
	}

	// Resolved entries must reproduce the originals regardless of storage.
	found := map[object.Hash]bool{}
	for _, entry := range pf.Entries {
		objType, ok := object.StoreType(entry.Type)
		if !ok {
			t.Fatalf("unresolved entry type %d", entry.Type)
		}
		found[object.HashObject(objType, entry.Data)] = true
	}
	if !found[baseHash] || !found[variantHash] {
		t.Errorf("resolved entries missing expected blobs: %v", found)
	}
}
