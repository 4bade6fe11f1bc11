package storage

import "github.com/chess-arena/analytics-backend/internal/models"

// One repository interface per aggregate, grounded on the pack's
// TreeChess import_service.go consuming repository.AnalysisRepository /
// GameFingerprintRepository as narrow collaborator interfaces rather than
// a single monolithic DB handle.

// UserRepository persists and looks up User records.
type UserRepository interface {
	UpsertUser(user models.User) error
	GetUser(usernameLower string) (*models.User, error)
}

// GameRepository persists Game records, keyed by (username, externalID) for
// dedup and indexed by ID for direct lookup.
type GameRepository interface {
	UpsertGame(game models.Game) error
	GetGameByExternalID(usernameLower, externalID string) (*models.Game, error)
	GetGameByID(gameID string) (*models.Game, error)
	ListGamesByUser(usernameLower string) ([]models.Game, error)
}

// PositionRepository persists per-ply Position rows for a game.
type PositionRepository interface {
	UpsertPosition(pos models.Position) error
	ListPositions(gameID string) ([]models.Position, error)
}

// PuzzleRepository persists Puzzle rows and serves the paginated,
// newest-first listing the /puzzles endpoint needs.
type PuzzleRepository interface {
	UpsertPuzzle(puzzle models.Puzzle) error
	GetPuzzleByID(puzzleID string) (*models.Puzzle, error)
	ListPuzzlesByGame(gameID string) ([]models.Puzzle, error)
	ListPuzzlesByUser(usernameLower string, limit, offset int) ([]models.Puzzle, error)
}

// JobRepository persists the one-per-user AnalysisJob progress record.
type JobRepository interface {
	UpsertJob(job models.AnalysisJob) error
	GetJob(usernameLower string) (*models.AnalysisJob, error)
}

// Store is the union every repository-consuming component depends on; the
// single BadgerDB-backed implementation in badger_store.go satisfies all
// five.
type Store interface {
	UserRepository
	GameRepository
	PositionRepository
	PuzzleRepository
	JobRepository
	Close() error
}
