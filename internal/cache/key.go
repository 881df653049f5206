package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// NewKey hashes length-prefixed UTF-8 segments with SHA-256 and returns
// the lowercase hex digest. Length prefixes keep segment boundaries
// unambiguous: ("ab","c") and ("a","bc") hash differently.
func NewKey(segments ...[]byte) string {
	h := sha256.New()
	var prefix [8]byte
	for _, segment := range segments {
		binary.BigEndian.PutUint64(prefix[:], uint64(len(segment)))
		h.Write(prefix[:])
		h.Write(segment)
	}
	return hex.EncodeToString(h.Sum(nil))
}
