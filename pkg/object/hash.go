package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashSize is the raw digest width in bytes. Hex-encoded hashes are twice
// this length.
const HashSize = sha1.Size

// HashBytes computes the raw SHA-1 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha1.Sum(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-1 of the envelope "type len\0content",
// mirroring Git's object hashing.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// Valid reports whether h is a well-formed lowercase hex digest of the
// expected width. It says nothing about whether the object exists.
func (h Hash) Valid() bool {
	if len(h) != HashSize*2 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func hashHexToBytes(h Hash) ([]byte, error) {
	if len(h) != HashSize*2 {
		return nil, fmt.Errorf("hash length must be %d hex chars, got %d", HashSize*2, len(h))
	}
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", h, err)
	}
	return raw, nil
}
