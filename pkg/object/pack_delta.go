package object

import (
	"bytes"
	"fmt"
	"io"
)

const (
	deltaMaxInsert   = 127
	deltaMaxCopySize = 0xffffff
)

func encodeDeltaVarint(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	out := make([]byte, 0, 10)
	for v > 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large")
		}
	}
}

// encodeOfsDeltaDistance encodes a backward distance for OFS_DELTA entries.
func encodeOfsDeltaDistance(distance uint64) []byte {
	if distance == 0 {
		return []byte{0}
	}
	b := []byte{byte(distance & 0x7f)}
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		b = append([]byte{byte((distance & 0x7f) | 0x80)}, b...)
	}
	return b
}

func decodeOfsDeltaDistance(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("ofs-delta distance truncated")
	}
	i := 0
	c := data[i]
	i++
	offset := uint64(c & 0x7f)
	for c&0x80 != 0 {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("ofs-delta distance truncated")
		}
		c = data[i]
		i++
		offset = ((offset + 1) << 7) | uint64(c&0x7f)
	}
	return offset, i, nil
}

// BuildDelta returns a Git delta stream encoding target against base. The
// builder copies the longest shared prefix and suffix from the base and
// inserts the middle as literals, so similar objects produce deltas far
// smaller than the target while arbitrary pairs degrade to an insert-only
// stream that is still valid.
func BuildDelta(base, target []byte) []byte {
	var out bytes.Buffer
	out.Write(encodeDeltaVarint(uint64(len(base))))
	out.Write(encodeDeltaVarint(uint64(len(target))))

	prefix := sharedPrefixLen(base, target)
	suffix := sharedSuffixLen(base[prefix:], target[prefix:])

	writeDeltaCopy(&out, 0, prefix)
	writeDeltaInsert(&out, target[prefix:len(target)-suffix])
	writeDeltaCopy(&out, uint64(len(base)-suffix), suffix)

	return out.Bytes()
}

func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func sharedSuffixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}

func writeDeltaInsert(out *bytes.Buffer, data []byte) {
	for pos := 0; pos < len(data); {
		chunk := len(data) - pos
		if chunk > deltaMaxInsert {
			chunk = deltaMaxInsert
		}
		out.WriteByte(byte(chunk))
		out.Write(data[pos : pos+chunk])
		pos += chunk
	}
}

func writeDeltaCopy(out *bytes.Buffer, offset uint64, length int) {
	for length > 0 {
		size := length
		if size > deltaMaxCopySize {
			size = deltaMaxCopySize
		}
		encodeDeltaCopyOp(out, offset, uint64(size))
		offset += uint64(size)
		length -= size
	}
}

// encodeDeltaCopyOp emits a single copy instruction. A size of 0x10000 is
// encoded as zero size bytes per the Git delta format.
func encodeDeltaCopyOp(out *bytes.Buffer, offset, size uint64) {
	cmd := byte(0x80)
	var args []byte

	for i := uint(0); i < 4; i++ {
		if b := byte(offset >> (8 * i)); b != 0 {
			cmd |= 1 << i
			args = append(args, b)
		}
	}
	if size != 0x10000 {
		for i := uint(0); i < 3; i++ {
			if b := byte(size >> (8 * i)); b != 0 {
				cmd |= 0x10 << i
				args = append(args, b)
			}
		}
	}

	out.WriteByte(cmd)
	out.Write(args)
}

// ApplyDelta applies Git delta instructions to base and returns the result.
func ApplyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read base size: %w", err)
	}
	if int(baseSize) != len(base) {
		return nil, fmt.Errorf("delta base size mismatch: got %d want %d", baseSize, len(base))
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read result size: %w", err)
	}

	out := make([]byte, 0, resultSize)
	for dr.Len() > 0 {
		cmd, err := dr.ReadByte()
		if err != nil {
			return nil, err
		}
		if cmd&0x80 != 0 {
			var (
				offset int64
				size   int64
			)
			for i := uint(0); i < 4; i++ {
				if cmd&(1<<i) == 0 {
					continue
				}
				b, err := readDeltaCopyArgByte(dr, "offset")
				if err != nil {
					return nil, err
				}
				offset |= int64(b) << (8 * i)
			}
			for i := uint(0); i < 3; i++ {
				if cmd&(0x10<<i) == 0 {
					continue
				}
				b, err := readDeltaCopyArgByte(dr, "size")
				if err != nil {
					return nil, err
				}
				size |= int64(b) << (8 * i)
			}
			if size == 0 {
				size = 0x10000
			}
			if offset < 0 || size < 0 || offset+size > int64(len(base)) {
				return nil, fmt.Errorf("delta copy out of bounds")
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("invalid delta command: 0")
		}
		insert := make([]byte, int(cmd))
		if _, err := io.ReadFull(dr, insert); err != nil {
			return nil, fmt.Errorf("delta insert: %w", err)
		}
		out = append(out, insert...)
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta result size mismatch: got %d expected %d", len(out), resultSize)
	}
	return out, nil
}

func readDeltaCopyArgByte(r io.ByteReader, field string) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("delta copy %s: %w", field, err)
	}
	return b, nil
}
