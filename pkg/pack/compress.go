package pack

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/gitpack/pkg/object"
)

// preparedEntry is one object ready for pack emission: its payload chosen
// (raw or delta against an earlier entry) and zlib-compressed.
type preparedEntry struct {
	id         object.Hash
	packType   object.PackObjectType
	size       uint64 // uncompressed payload length (delta stream for deltas)
	compressed []byte
	baseIndex  int // index of the delta base entry, -1 for raw storage
}

type loadedObject struct {
	packType object.PackObjectType
	data     []byte
}

// prepareEntries runs the compression stage: load every selected object,
// pick a storage form for each, and compress the payloads. Work fans out
// across at most threads workers and joins before returning; results are in
// selection order regardless of scheduling.
func prepareEntries(src Source, ids []object.Hash, threads, window int) ([]preparedEntry, error) {
	loaded := make([]loadedObject, len(ids))

	var g errgroup.Group
	g.SetLimit(threads)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			objType, data, err := src.Read(id)
			if err != nil {
				return fmt.Errorf("load %s: %w", id, err)
			}
			packType, ok := object.PackType(objType)
			if !ok {
				return fmt.Errorf("load %s: unsupported object type %q", id, objType)
			}
			loaded[i] = loadedObject{packType: packType, data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]preparedEntry, len(ids))
	var cg errgroup.Group
	cg.SetLimit(threads)
	for i := range ids {
		i := i
		cg.Go(func() error {
			entry, err := compressOne(ids[i], loaded, i, window)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := cg.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

// compressOne chooses between raw storage and an ofs-delta against a nearby
// earlier entry of the same type. Insertion order is the locality hint: the
// window scans backwards from the entry itself.
func compressOne(id object.Hash, loaded []loadedObject, i, window int) (preparedEntry, error) {
	target := loaded[i]

	raw, err := object.CompressPackPayload(target.data)
	if err != nil {
		return preparedEntry{}, fmt.Errorf("compress %s: %w", id, err)
	}
	best := preparedEntry{
		id:         id,
		packType:   target.packType,
		size:       uint64(len(target.data)),
		compressed: raw,
		baseIndex:  -1,
	}

	for j := i - 1; j >= 0 && j >= i-window; j-- {
		base := loaded[j]
		if base.packType != target.packType {
			continue
		}
		delta := object.BuildDelta(base.data, target.data)
		if len(delta) >= len(target.data) {
			continue
		}
		compressed, err := object.CompressPackPayload(delta)
		if err != nil {
			return preparedEntry{}, fmt.Errorf("compress delta %s: %w", id, err)
		}
		if len(compressed) < len(best.compressed) {
			best.size = uint64(len(delta))
			best.compressed = compressed
			best.baseIndex = j
		}
	}

	return best, nil
}
