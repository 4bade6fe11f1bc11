package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Key prefixes and layout are range-scan friendly: zero-padded numeric
// components keep lexicographic BadgerDB iteration in natural order.
const (
	prefixUser        = "user:"
	prefixGame        = "game:"
	prefixGameByID    = "gameByID:"
	prefixPosition    = "position:"
	prefixPuzzle      = "puzzle:"
	prefixPuzzleIndex = "puzzleIndex:"
	prefixJob         = "job:"
)

func userKey(usernameLower string) []byte {
	return []byte(prefixUser + usernameLower)
}

// externalIDHash keeps game keys bounded-length regardless of how long the
// external source's game URL/ID is.
func externalIDHash(externalID string) string {
	sum := sha1.Sum([]byte(externalID))
	return hex.EncodeToString(sum[:8])
}

func gameKey(usernameLower, externalID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixGame, usernameLower, externalIDHash(externalID)))
}

func gameByIDKey(gameID string) []byte {
	return []byte(prefixGameByID + gameID)
}

func positionKey(gameID string, ply int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", prefixPosition, gameID, ply))
}

func positionScanPrefix(gameID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixPosition, gameID))
}

func puzzleKey(gameID string, ply int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", prefixPuzzle, gameID, ply))
}

func puzzleScanPrefix(gameID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixPuzzle, gameID))
}

func puzzleIndexKey(usernameLower string, createdAtUnixNano int64, puzzleID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", prefixPuzzleIndex, usernameLower, createdAtUnixNano, puzzleID))
}

func puzzleIndexScanPrefix(usernameLower string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixPuzzleIndex, usernameLower))
}

func gameScanPrefix(usernameLower string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixGame, usernameLower))
}

func jobKey(usernameLower string) []byte {
	return []byte(prefixJob + usernameLower)
}
