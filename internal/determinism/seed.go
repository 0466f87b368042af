// Package determinism derives stable seeds so identical review inputs
// produce identical completions from backends that honor seeding.
package determinism

import (
	"crypto/sha256"
	"encoding/binary"
)

// Seed hashes the inputs into a reproducible non-negative value. The high
// bit is masked off because completion APIs take the seed as a signed int64.
func Seed(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	var sum [sha256.Size]byte
	h.Sum(sum[:0])
	return int64(binary.BigEndian.Uint64(sum[:8]) & 0x7FFFFFFFFFFFFFFF)
}
