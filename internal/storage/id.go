package storage

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID mints a ULID-shaped identifier, used wherever a Game, Position or
// Puzzle needs a stable ID for URLs without an auto-increment sequence from
// a SQL engine (§3 expansion).
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
