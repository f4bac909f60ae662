package pack

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/gitpack/pkg/object"
)

// WriteToDirectory compresses the current selection and writes
// pack-<hash>.pack and pack-<hash>.idx into dir, which must already exist.
// The call blocks until both files are in place; on failure no partial pack
// or index is left behind. The builder stays usable afterwards: more ids can
// be added and the pack written again.
func (b *Builder) WriteToDirectory(dir string) (*Result, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidPath)
	}
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	}

	ids := make([]object.Hash, len(b.order))
	copy(ids, b.order)
	if uint64(len(ids)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: too many objects: %d", ErrBuildFailed, len(ids))
	}

	entries, err := prepareEntries(b.src, ids, b.threads, b.window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	packHash, err := packIdentity(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	if err := b.emit(dir, packHash, entries); err != nil {
		return nil, err
	}

	result := &Result{
		ObjectCount: len(ids),
		PackHash:    packHash,
	}
	b.last = result
	return result, nil
}

// emit serializes prepared entries into temp files and renames them into
// place, pack first, index second.
func (b *Builder) emit(dir string, packHash object.Hash, entries []preparedEntry) error {
	packTmp, err := os.CreateTemp(dir, ".tmp-pack-*.pack")
	if err != nil {
		return fmt.Errorf("%w: create pack temp file: %v", ErrBuildFailed, err)
	}
	packTmpPath := packTmp.Name()
	packTmpRemoved := false
	defer func() {
		if !packTmpRemoved {
			_ = os.Remove(packTmpPath)
		}
	}()

	pw, err := object.NewPackWriter(packTmp, uint32(len(entries)))
	if err != nil {
		_ = packTmp.Close()
		return fmt.Errorf("%w: create pack writer: %v", ErrBuildFailed, err)
	}

	offsets := make([]uint64, len(entries))
	indexEntries := make([]object.PackIndexEntry, 0, len(entries))
	for i, entry := range entries {
		var pos object.PackEntryPos
		if entry.baseIndex >= 0 {
			pos, err = pw.WriteDeltaEntry(offsets[entry.baseIndex], entry.size, entry.compressed)
		} else {
			pos, err = pw.WriteCompressedEntry(entry.packType, entry.size, entry.compressed)
		}
		if err != nil {
			_ = packTmp.Close()
			return fmt.Errorf("%w: write entry %s: %v", ErrBuildFailed, entry.id, err)
		}
		offsets[i] = pos.Offset
		indexEntries = append(indexEntries, object.PackIndexEntry{
			Hash:   entry.id,
			Offset: pos.Offset,
			CRC32:  pos.CRC32,
		})
	}

	checksum, err := pw.Finish()
	if err != nil {
		_ = packTmp.Close()
		return fmt.Errorf("%w: finalize pack: %v", ErrBuildFailed, err)
	}
	if err := packTmp.Close(); err != nil {
		return fmt.Errorf("%w: close pack temp file: %v", ErrBuildFailed, err)
	}

	packBase := "pack-" + string(packHash)
	packPath := filepath.Join(dir, packBase+".pack")
	idxPath := filepath.Join(dir, packBase+".idx")
	if err := os.Rename(packTmpPath, packPath); err != nil {
		return fmt.Errorf("%w: rename pack file: %v", ErrBuildFailed, err)
	}
	packTmpRemoved = true

	idxTmp, err := os.CreateTemp(dir, ".tmp-pack-*.idx")
	if err != nil {
		_ = os.Remove(packPath)
		return fmt.Errorf("%w: create index temp file: %v", ErrBuildFailed, err)
	}
	idxTmpPath := idxTmp.Name()
	idxTmpRemoved := false
	defer func() {
		if !idxTmpRemoved {
			_ = os.Remove(idxTmpPath)
		}
	}()

	if _, err := object.WritePackIndex(idxTmp, indexEntries, checksum); err != nil {
		_ = idxTmp.Close()
		_ = os.Remove(packPath)
		return fmt.Errorf("%w: write pack index: %v", ErrBuildFailed, err)
	}
	if err := idxTmp.Close(); err != nil {
		_ = os.Remove(packPath)
		return fmt.Errorf("%w: close index temp file: %v", ErrBuildFailed, err)
	}
	if err := os.Rename(idxTmpPath, idxPath); err != nil {
		_ = os.Remove(packPath)
		return fmt.Errorf("%w: rename index file: %v", ErrBuildFailed, err)
	}
	idxTmpRemoved = true

	return nil
}

// packIdentity hashes the sorted raw object ids. Two packs containing the
// same objects get the same identity no matter the insertion order.
func packIdentity(ids []object.Hash) (object.Hash, error) {
	sorted := make([]object.Hash, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := sha1.New()
	for _, id := range sorted {
		raw, err := hex.DecodeString(string(id))
		if err != nil || len(raw) != sha1.Size {
			return "", fmt.Errorf("malformed object id %q", id)
		}
		h.Write(raw)
	}
	return object.Hash(hex.EncodeToString(h.Sum(nil))), nil
}
