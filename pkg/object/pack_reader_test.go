package object

import (
	"bytes"
	"testing"
)

func buildTestPack(t *testing.T, payloads map[PackObjectType][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, uint32(len(payloads)))
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	for _, objType := range []PackObjectType{PackCommit, PackTree, PackBlob, PackTag} {
		data, ok := payloads[objType]
		if !ok {
			continue
		}
		if _, err := pw.WriteEntry(objType, data); err != nil {
			t.Fatalf("WriteEntry(%d): %v", objType, err)
		}
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return buf.Bytes()
}

func TestReadPackMixedTypes(t *testing.T) {
	payloads := map[PackObjectType][]byte{
		PackCommit: []byte("tree x\nauthor a\ntimestamp 1\n\nmsg"),
		PackTree:   []byte("100644 h name\n"),
		PackBlob:   []byte("blob bytes"),
		PackTag:    []byte("object x\ntype commit\ntag t\ntagger a\ntimestamp 1\n\nmsg"),
	}
	data := buildTestPack(t, payloads)

	pf, err := ReadPack(data)
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if pf.Header.NumObjects != 4 {
		t.Fatalf("NumObjects = %d, want 4", pf.Header.NumObjects)
	}
	if len(pf.Entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(pf.Entries))
	}
	for _, entry := range pf.Entries {
		want := payloads[entry.Type]
		if !bytes.Equal(entry.Data, want) {
			t.Errorf("type %d data = %q, want %q", entry.Type, entry.Data, want)
		}
		if entry.Size != uint64(len(want)) {
			t.Errorf("type %d size = %d, want %d", entry.Type, entry.Size, len(want))
		}
	}
}

func TestReadPackCorruptTrailer(t *testing.T) {
	data := buildTestPack(t, map[PackObjectType][]byte{PackBlob: []byte("x")})
	data[len(data)-1] ^= 0xff
	if _, err := ReadPack(data); err == nil {
		t.Error("ReadPack accepted corrupted trailer")
	}
}

func TestReadPackCorruptBody(t *testing.T) {
	data := buildTestPack(t, map[PackObjectType][]byte{PackBlob: []byte("some payload")})
	data[packHeaderSize+3] ^= 0xff
	if _, err := ReadPack(data); err == nil {
		t.Error("ReadPack accepted corrupted body")
	}
}

func TestReadPackTooShort(t *testing.T) {
	if _, err := ReadPack([]byte("PACK")); err == nil {
		t.Error("ReadPack accepted truncated input")
	}
}

func TestReadPackFromReader(t *testing.T) {
	data := buildTestPack(t, map[PackObjectType][]byte{PackBlob: []byte("stream me")})
	pf, err := ReadPackFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadPackFromReader: %v", err)
	}
	if len(pf.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(pf.Entries))
	}
}
