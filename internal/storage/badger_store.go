package storage

import (
	"encoding/json"
	"fmt"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is the sole Store implementation, built around BadgerDB's
// db.View/db.Update transactions and the range-scan key scheme in keys.go.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (creating if necessary) a BadgerDB database at path.
func Open(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func set(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func get(txn *badger.Txn, key []byte, v interface{}) (bool, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
	return true, err
}

func (s *BadgerStore) UpsertUser(user models.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return set(txn, userKey(models.NormalizeUsername(user.Username)), user)
	})
}

func (s *BadgerStore) GetUser(usernameLower string) (*models.User, error) {
	var user models.User
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = get(txn, userKey(usernameLower), &user)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

func (s *BadgerStore) UpsertGame(game models.Game) error {
	if game.ID == "" {
		game.ID = NewID()
	}
	usernameLower := models.NormalizeUsername(game.Username)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := set(txn, gameKey(usernameLower, game.ExternalID), game); err != nil {
			return err
		}
		return set(txn, gameByIDKey(game.ID), game)
	})
}

func (s *BadgerStore) GetGameByExternalID(usernameLower, externalID string) (*models.Game, error) {
	var game models.Game
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = get(txn, gameKey(usernameLower, externalID), &game)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &game, nil
}

func (s *BadgerStore) GetGameByID(gameID string) (*models.Game, error) {
	var game models.Game
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = get(txn, gameByIDKey(gameID), &game)
		return err
	})
	if err != nil || !found {
		return nil, nil
	}
	return &game, nil
}

func (s *BadgerStore) ListGamesByUser(usernameLower string) ([]models.Game, error) {
	var games []models.Game
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = gameScanPrefix(usernameLower)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var game models.Game
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &game)
			}); err != nil {
				return err
			}
			games = append(games, game)
		}
		return nil
	})
	return games, err
}

func (s *BadgerStore) UpsertPosition(pos models.Position) error {
	if pos.ID == "" {
		pos.ID = NewID()
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return set(txn, positionKey(pos.GameID, pos.Ply), pos)
	})
}

func (s *BadgerStore) ListPositions(gameID string) ([]models.Position, error) {
	var positions []models.Position
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = positionScanPrefix(gameID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var pos models.Position
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &pos)
			}); err != nil {
				return err
			}
			positions = append(positions, pos)
		}
		return nil
	})
	return positions, err
}

func (s *BadgerStore) UpsertPuzzle(puzzle models.Puzzle) error {
	if puzzle.ID == "" {
		puzzle.ID = NewID()
	}
	usernameLower, err := s.usernameForGame(puzzle.GameID)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := set(txn, puzzleKey(puzzle.GameID, puzzle.Ply), puzzle); err != nil {
			return err
		}
		return set(txn, puzzleIndexKey(usernameLower, puzzle.CreatedAtUnixNano, puzzle.ID), puzzle.ID)
	})
}

func (s *BadgerStore) usernameForGame(gameID string) (string, error) {
	game, err := s.GetGameByID(gameID)
	if err != nil {
		return "", err
	}
	if game == nil {
		return "", fmt.Errorf("game %s not found", gameID)
	}
	return models.NormalizeUsername(game.Username), nil
}

func (s *BadgerStore) GetPuzzleByID(puzzleID string) (*models.Puzzle, error) {
	var found *models.Puzzle
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPuzzle)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var puzzle models.Puzzle
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &puzzle)
			}); err != nil {
				return err
			}
			if puzzle.ID == puzzleID {
				found = &puzzle
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (s *BadgerStore) ListPuzzlesByGame(gameID string) ([]models.Puzzle, error) {
	var puzzles []models.Puzzle
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = puzzleScanPrefix(gameID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var puzzle models.Puzzle
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &puzzle)
			}); err != nil {
				return err
			}
			puzzles = append(puzzles, puzzle)
		}
		return nil
	})
	return puzzles, err
}

// ListPuzzlesByUser walks the puzzleIndex in reverse (newest createdAt
// first), resolving each indexed ID back to its puzzle row.
func (s *BadgerStore) ListPuzzlesByUser(usernameLower string, limit, offset int) ([]models.Puzzle, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		prefix := puzzleIndexScanPrefix(usernameLower)
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &id)
			}); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}
	page := ids[offset:end]

	puzzles := make([]models.Puzzle, 0, len(page))
	for _, id := range page {
		puzzle, err := s.GetPuzzleByID(id)
		if err != nil {
			return nil, err
		}
		if puzzle != nil {
			puzzles = append(puzzles, *puzzle)
		}
	}
	return puzzles, nil
}

func (s *BadgerStore) UpsertJob(job models.AnalysisJob) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return set(txn, jobKey(models.NormalizeUsername(job.Username)), job)
	})
}

func (s *BadgerStore) GetJob(usernameLower string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = get(txn, jobKey(usernameLower), &job)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &job, nil
}
