package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
)

type packCountedWriter struct {
	w io.Writer
	n uint64
}

func (cw *packCountedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

func (cw *packCountedWriter) Count() uint64 {
	return cw.n
}

// CompressPackPayload zlib-compresses a pack entry payload.
func CompressPackPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackEntryPos locates an entry within the pack stream: the offset of its
// header from pack start and the CRC-32 of its on-disk bytes.
type PackEntryPos struct {
	Offset uint64
	CRC32  uint32
}

// PackWriter writes Git-compatible pack streams with zlib-compressed object
// entries. The trailer checksum is SHA-1 over all bytes preceding the trailer.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *packCountedWriter
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter initializes a new writer and writes the fixed pack header.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha1.New()
	counter := &packCountedWriter{w: out}
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		expected: numObjects,
	}

	header := PackHeader{
		Version:    supportedPackVersion,
		NumObjects: numObjects,
	}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the current byte offset in the pack stream (from pack
// start), excluding the trailing checksum written by Finish().
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.Count()
}

// WriteEntry compresses data and appends one object entry to the pack stream.
func (p *PackWriter) WriteEntry(objType PackObjectType, data []byte) (PackEntryPos, error) {
	compressed, err := CompressPackPayload(data)
	if err != nil {
		return PackEntryPos{}, fmt.Errorf("compress pack entry: %w", err)
	}
	return p.WriteCompressedEntry(objType, uint64(len(data)), compressed)
}

// WriteCompressedEntry appends one object entry whose payload was compressed
// by the caller. size is the uncompressed payload length.
func (p *PackWriter) WriteCompressedEntry(objType PackObjectType, size uint64, compressed []byte) (PackEntryPos, error) {
	header := encodePackEntryHeader(objType, size)
	return p.writeEntryBytes(header, nil, compressed)
}

// WriteDeltaEntry appends an OFS_DELTA entry against the entry starting at
// baseOffset. deltaSize is the uncompressed delta stream length and
// compressed its zlib-compressed form.
func (p *PackWriter) WriteDeltaEntry(baseOffset, deltaSize uint64, compressed []byte) (PackEntryPos, error) {
	if p.finished {
		return PackEntryPos{}, fmt.Errorf("pack writer already finished")
	}
	current := p.CurrentOffset()
	if baseOffset >= current {
		return PackEntryPos{}, fmt.Errorf("base offset %d must be before current offset %d", baseOffset, current)
	}

	header := encodePackEntryHeader(PackOfsDelta, deltaSize)
	ofs := encodeOfsDeltaDistance(current - baseOffset)
	return p.writeEntryBytes(header, ofs, compressed)
}

func (p *PackWriter) writeEntryBytes(header, ofs, compressed []byte) (PackEntryPos, error) {
	if p.finished {
		return PackEntryPos{}, fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return PackEntryPos{}, fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}

	entry := make([]byte, 0, len(header)+len(ofs)+len(compressed))
	entry = append(entry, header...)
	entry = append(entry, ofs...)
	entry = append(entry, compressed...)

	pos := PackEntryPos{
		Offset: p.CurrentOffset(),
		CRC32:  crc32.ChecksumIEEE(entry),
	}
	if _, err := p.hashedW.Write(entry); err != nil {
		return PackEntryPos{}, fmt.Errorf("write pack entry: %w", err)
	}

	p.written++
	return pos, nil
}

// Finish validates object count, writes the trailing pack checksum, and returns
// that checksum as a hex digest.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}

	p.finished = true
	return Hash(hex.EncodeToString(sum)), nil
}
