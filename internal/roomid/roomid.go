// Package roomid generates room identifiers: UUIDv7 encoded as a
// 26-character Crockford base32 string. IDs sort by creation time,
// which keeps room listings stable without an extra sort key.
package roomid

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Crockford's base32 alphabet, as used by TypeID.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// RandSource injects randomness for deterministic tests.
type RandSource interface {
	Intn(n int) int
}

// New generates a room ID from a fresh UUIDv7.
func New() string {
	u, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does; nothing
		// sensible can continue without one.
		panic("roomid: " + err.Error())
	}
	return encode(u)
}

// NewWithRandSource generates a room ID whose random bits come from
// rs. The timestamp half still advances with the wall clock.
func NewWithRandSource(rs RandSource) string {
	var u uuid.UUID

	ms := time.Now().UnixMilli()
	binary.BigEndian.PutUint64(u[:8], uint64(ms)<<16)
	for i := 6; i < 16; i++ {
		u[i] = byte(rs.Intn(256))
	}
	u[6] = (u[6] & 0x0f) | 0x70 // version 7
	u[8] = (u[8] & 0x3f) | 0x80 // variant 10

	return encode(u)
}

// encode writes the 128-bit UUID as 26 base32 characters. Two zero
// bits of padding in front make 130 bits, so the first character is
// always 0-7.
func encode(u uuid.UUID) string {
	hi := binary.BigEndian.Uint64(u[0:8])
	lo := binary.BigEndian.Uint64(u[8:16])

	var out [26]byte
	for i := 25; i >= 0; i-- {
		out[i] = alphabet[lo&0x1f]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}

// Validate checks that an ID is a well-formed room identifier.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("room ID must be exactly 26 characters, got %d", len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("room ID first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
