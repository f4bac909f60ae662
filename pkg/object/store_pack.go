package object

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// VerifySummary reports the outcome of Store.Verify.
type VerifySummary struct {
	LooseObjects int
	PackFiles    int
	PackObjects  int
}

// Verify checks object integrity across loose objects and pack/index pairs:
// every loose object re-hashes to its name, every idx entry resolves to a
// pack entry whose payload hashes to the indexed id, and pack/idx checksums
// agree.
func (s *Store) Verify() (*VerifySummary, error) {
	report := &VerifySummary{}

	looseHashes, err := s.listLooseObjectHashes()
	if err != nil {
		return nil, err
	}
	for _, h := range looseHashes {
		objType, content, err := s.readLoose(h)
		if err != nil {
			return nil, fmt.Errorf("verify loose %s: %w", h, err)
		}
		if actual := HashObject(objType, content); actual != h {
			return nil, fmt.Errorf("verify loose %s: hash mismatch (computed %s)", h, actual)
		}
		report.LooseObjects++
	}

	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return nil, err
	}
	for _, idxPath := range idxPaths {
		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			return nil, fmt.Errorf("verify pack index %s: %w", filepath.Base(idxPath), err)
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			return nil, fmt.Errorf("verify pack index %s: %w", filepath.Base(idxPath), err)
		}

		packPath := packPathForIndex(idxPath)
		packData, err := os.ReadFile(packPath)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", filepath.Base(packPath), err)
		}
		pf, err := ReadPack(packData)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", filepath.Base(packPath), err)
		}
		if pf.Checksum != idx.PackChecksum {
			return nil, fmt.Errorf(
				"verify pack %s: checksum mismatch between idx (%s) and pack (%s)",
				filepath.Base(packPath),
				idx.PackChecksum,
				pf.Checksum,
			)
		}

		offsets := make(map[uint64]PackEntry, len(pf.Entries))
		for _, entry := range pf.Entries {
			if _, exists := offsets[entry.Offset]; exists {
				return nil, fmt.Errorf("verify pack %s: duplicate offset %d", filepath.Base(packPath), entry.Offset)
			}
			offsets[entry.Offset] = entry
		}

		entries := idx.Entries()
		if len(entries) != len(offsets) {
			return nil, fmt.Errorf(
				"verify pack %s: idx entry count %d does not match pack entry count %d",
				filepath.Base(packPath),
				len(entries),
				len(offsets),
			)
		}
		for _, indexEntry := range entries {
			packEntry, ok := offsets[indexEntry.Offset]
			if !ok {
				return nil, fmt.Errorf(
					"verify pack %s: missing pack entry for hash %s at offset %d",
					filepath.Base(packPath),
					indexEntry.Hash,
					indexEntry.Offset,
				)
			}
			if _, _, err := decodeIndexedPackEntry(indexEntry.Hash, packEntry); err != nil {
				return nil, fmt.Errorf("verify pack %s hash %s: %w", filepath.Base(packPath), indexEntry.Hash, err)
			}
			report.PackObjects++
		}
		report.PackFiles++
	}

	return report, nil
}

func (s *Store) readFromPacks(h Hash) (ObjectType, []byte, error) {
	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return "", nil, err
	}
	for _, idxPath := range idxPaths {
		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: read pack index %s: %w", h, filepath.Base(idxPath), err)
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: parse pack index %s: %w", h, filepath.Base(idxPath), err)
		}
		indexEntry, ok := idx.Find(h)
		if !ok {
			continue
		}

		packPath := packPathForIndex(idxPath)
		packData, err := os.ReadFile(packPath)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: read pack %s: %w", h, filepath.Base(packPath), err)
		}

		pf, err := ReadPack(packData)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: parse pack %s: %w", h, filepath.Base(packPath), err)
		}
		if pf.Checksum != idx.PackChecksum {
			return "", nil, fmt.Errorf(
				"object read %s: checksum mismatch between idx %s and pack %s",
				h,
				filepath.Base(idxPath),
				filepath.Base(packPath),
			)
		}

		packEntry, ok := findPackEntryByOffset(pf.Entries, indexEntry.Offset)
		if !ok {
			return "", nil, fmt.Errorf(
				"object read %s: pack %s missing entry at offset %d",
				h,
				filepath.Base(packPath),
				indexEntry.Offset,
			)
		}
		return decodeIndexedPackEntry(h, packEntry)
	}

	return "", nil, fmt.Errorf("object read %s: %w", h, os.ErrNotExist)
}

func decodeIndexedPackEntry(expected Hash, entry PackEntry) (ObjectType, []byte, error) {
	objType, ok := StoreType(entry.Type)
	if !ok {
		return "", nil, fmt.Errorf("unsupported packed object type %d", entry.Type)
	}
	computed := HashObject(objType, entry.Data)
	if computed != expected {
		return "", nil, fmt.Errorf(
			"packed object hash mismatch: expected %s, computed %s",
			expected,
			computed,
		)
	}
	return objType, entry.Data, nil
}

func findPackEntryByOffset(entries []PackEntry, offset uint64) (PackEntry, bool) {
	for _, entry := range entries {
		if entry.Offset == offset {
			return entry, true
		}
	}
	return PackEntry{}, false
}

// PackedHashes returns the set of object ids indexed by any pack.
func (s *Store) PackedHashes() (map[Hash]struct{}, error) {
	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return nil, err
	}

	out := make(map[Hash]struct{})
	for _, idxPath := range idxPaths {
		packPath := packPathForIndex(idxPath)
		if _, err := os.Stat(packPath); err != nil {
			return nil, fmt.Errorf("read pack for index %s: %w", filepath.Base(idxPath), err)
		}

		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			return nil, fmt.Errorf("read pack index %s: %w", filepath.Base(idxPath), err)
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			return nil, fmt.Errorf("parse pack index %s: %w", filepath.Base(idxPath), err)
		}
		for _, entry := range idx.Entries() {
			out[entry.Hash] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) listPackIndexPaths() ([]string, error) {
	entries, err := os.ReadDir(s.PackDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pack dir: %w", err)
	}

	idxPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}
		idxPaths = append(idxPaths, filepath.Join(s.PackDir(), entry.Name()))
	}
	sort.Strings(idxPaths)
	return idxPaths, nil
}

func (s *Store) listLooseObjectHashes() ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	fanoutDirs, err := os.ReadDir(objectsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read objects dir: %w", err)
	}

	hashes := make([]Hash, 0)
	for _, fanoutDir := range fanoutDirs {
		if !fanoutDir.IsDir() {
			continue
		}
		prefix := fanoutDir.Name()
		if prefix == "pack" || !isHexHashComponent(prefix, 2) {
			continue
		}

		objectDir := filepath.Join(objectsDir, prefix)
		objectEntries, err := os.ReadDir(objectDir)
		if err != nil {
			return nil, fmt.Errorf("read objects fanout %s: %w", prefix, err)
		}
		for _, objectEntry := range objectEntries {
			if objectEntry.IsDir() {
				continue
			}
			suffix := objectEntry.Name()
			if !isHexHashComponent(suffix, HashSize*2-2) {
				continue
			}
			hashes = append(hashes, Hash(prefix+suffix))
		}
	}

	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i] < hashes[j]
	})
	return hashes, nil
}

func isHexHashComponent(s string, expectedLen int) bool {
	if len(s) != expectedLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func packPathForIndex(idxPath string) string {
	return strings.TrimSuffix(idxPath, ".idx") + ".pack"
}
