package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry is one decoded object entry. For delta entries the Data and Type
// are the fully resolved payload and its base's object type; RawDelta keeps
// the delta stream for inspection.
type PackEntry struct {
	Offset     uint64
	Type       PackObjectType
	Size       uint64
	Data       []byte
	BaseOffset uint64 // non-zero only for ofs-delta entries
}

// IsDelta reports whether the entry was stored as a delta.
func (e PackEntry) IsDelta() bool {
	return e.BaseOffset != 0
}

// PackFile is the decoded content of a full pack stream with all deltas
// resolved.
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum Hash
}

// ReadPack parses a full pack file byte slice, verifies the trailer
// checksum, resolves ofs-delta entries against their bases, and returns the
// decoded entries in stream order.
func ReadPack(data []byte) (*PackFile, error) {
	if len(data) < packHeaderSize+sha1.Size {
		return nil, fmt.Errorf("pack too short: %d", len(data))
	}

	payload := data[:len(data)-sha1.Size]
	trailer := data[len(data)-sha1.Size:]

	sum := sha1.Sum(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("pack checksum mismatch")
	}

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	offset := packHeaderSize
	entries := make([]PackEntry, 0, header.NumObjects)
	byOffset := make(map[uint64]int, header.NumObjects)

	for i := uint32(0); i < header.NumObjects; i++ {
		entryOffset := uint64(offset)
		objType, size, n, err := decodePackEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += n

		var baseOffset uint64
		switch objType {
		case PackOfsDelta:
			distance, n, err := decodeOfsDeltaDistance(payload[offset:])
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			offset += n
			if distance == 0 || distance > entryOffset {
				return nil, fmt.Errorf("entry %d: invalid ofs-delta distance %d", i, distance)
			}
			baseOffset = entryOffset - distance
		case PackRefDelta:
			return nil, fmt.Errorf("entry %d: ref-delta entries not supported", i)
		}

		if offset >= len(payload) {
			return nil, fmt.Errorf("entry %d: missing compressed payload", i)
		}
		raw, consumed, err := inflatePackPayload(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += consumed
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("entry %d: size mismatch header=%d decoded=%d", i, size, len(raw))
		}

		if objType == PackOfsDelta {
			baseIdx, ok := byOffset[baseOffset]
			if !ok {
				return nil, fmt.Errorf("entry %d: no base entry at offset %d", i, baseOffset)
			}
			base := entries[baseIdx]
			resolved, err := ApplyDelta(base.Data, raw)
			if err != nil {
				return nil, fmt.Errorf("entry %d: resolve delta: %w", i, err)
			}
			objType = base.Type
			raw = resolved
			size = uint64(len(resolved))
		}

		byOffset[entryOffset] = len(entries)
		entries = append(entries, PackEntry{
			Offset:     entryOffset,
			Type:       objType,
			Size:       size,
			Data:       raw,
			BaseOffset: baseOffset,
		})
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pack has trailing undecoded bytes: %d", len(payload)-offset)
	}

	return &PackFile{
		Header:   *header,
		Entries:  entries,
		Checksum: Hash(hex.EncodeToString(trailer)),
	}, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack for decode and verification.
func ReadPackFromReader(r io.Reader) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}

// inflatePackPayload decompresses one zlib stream from the front of data and
// reports how many compressed bytes it consumed.
func inflatePackPayload(data []byte) ([]byte, int, error) {
	sub := bytes.NewReader(data)
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return nil, 0, fmt.Errorf("zlib reader: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return nil, 0, fmt.Errorf("decompress: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, 0, fmt.Errorf("close zlib stream: %w", err)
	}
	return raw, len(data) - sub.Len(), nil
}
