// Package entropy provides the process seed when none is configured.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Seed returns a non-zero seed from crypto/rand, falling back to the clock
// when the system source is unavailable.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano() | 1
	}
	// Keep it positive so logged seeds can be passed back through TOKENSIM_SEED.
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if n == 0 {
		n = 1
	}
	return n
}

// Resolve returns configured unless it is zero, in which case a fresh seed
// is drawn.
func Resolve(configured int64) int64 {
	if configured != 0 {
		return configured
	}
	return Seed()
}
