package services

import (
	"context"
	"fmt"
	"time"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/chess-arena/analytics-backend/internal/storage"
	"github.com/sirupsen/logrus"
)

// Orchestrator runs one user's end-to-end Import -> Parse -> Evaluate ->
// Accuracy -> Generate-Puzzles pipeline, persisting progress after every
// stage so the polling endpoints see monotonic progress. Pipeline state
// lives entirely in Store, never in an in-memory job map.
type Orchestrator struct {
	Store     storage.Store
	Source    GamesSource
	Parser    *ChessService
	Evaluator *EvaluatorService
	Accuracy  *AccuracyService
	Puzzles   *PuzzleGenerator
	Rating    *RatingService
}

// NewOrchestrator wires the pipeline's stage collaborators.
func NewOrchestrator(store storage.Store, source GamesSource, parser *ChessService, evaluator *EvaluatorService, accuracy *AccuracyService, puzzles *PuzzleGenerator, rating *RatingService) *Orchestrator {
	return &Orchestrator{
		Store:     store,
		Source:    source,
		Parser:    parser,
		Evaluator: evaluator,
		Accuracy:  accuracy,
		Puzzles:   puzzles,
		Rating:    rating,
	}
}

// RunForUser executes all five stages for usernameLower, updating the job
// record after each stage. It is safe to call repeatedly — every stage
// resumes from the leftmost incomplete row rather than reprocessing
// already-finished work.
func (o *Orchestrator) RunForUser(ctx context.Context, usernameLower string, opts FetchOptions) error {
	job := o.startJob(usernameLower)

	if err := o.stageImport(ctx, usernameLower, opts, job); err != nil {
		o.failJob(job, err)
		return err
	}
	if err := o.stageParse(usernameLower, job); err != nil {
		o.failJob(job, err)
		return err
	}
	if err := o.stageEvaluate(usernameLower, job); err != nil {
		o.failJob(job, err)
		return err
	}
	if err := o.stageAccuracyAndPuzzles(usernameLower, job); err != nil {
		o.failJob(job, err)
		return err
	}

	o.finishJob(job)
	return nil
}

func (o *Orchestrator) startJob(usernameLower string) *models.AnalysisJob {
	job, err := o.Store.GetJob(usernameLower)
	if err != nil || job == nil {
		job = &models.AnalysisJob{Username: usernameLower}
	}
	job.Status = models.JobStatusRunning
	job.StartedAt = time.Now()
	job.LastError = ""
	job.FinishedAt = nil
	o.saveJob(job)
	return job
}

func (o *Orchestrator) finishJob(job *models.AnalysisJob) {
	job.Status = models.JobStatusDone
	now := time.Now()
	job.FinishedAt = &now
	o.saveJob(job)
}

func (o *Orchestrator) failJob(job *models.AnalysisJob, err error) {
	job.Status = models.JobStatusFailed
	job.LastError = err.Error()
	now := time.Now()
	job.FinishedAt = &now
	o.saveJob(job)
	logrus.WithField("username", job.Username).WithError(err).Error("analysis job failed")
}

func (o *Orchestrator) saveJob(job *models.AnalysisJob) {
	job.UpdatedAt = time.Now()
	if err := o.Store.UpsertJob(*job); err != nil {
		logrus.WithField("username", job.Username).WithError(err).Error("failed to persist job progress")
	}
}

// stageImport fetches missing games via the external adapter and upserts
// any not already known by (username, externalID).
func (o *Orchestrator) stageImport(ctx context.Context, usernameLower string, opts FetchOptions, job *models.AnalysisJob) error {
	if err := o.Store.UpsertUser(models.User{Username: usernameLower, CreatedAt: time.Now()}); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	raw, err := o.Source.FetchGames(ctx, usernameLower, opts)
	if err != nil {
		return fmt.Errorf("fetch games: %w", err)
	}

	for _, rg := range raw {
		if existing, err := o.Store.GetGameByExternalID(usernameLower, rg.ExternalID); err == nil && existing != nil {
			continue
		}
		game := models.Game{
			Username:     usernameLower,
			ExternalID:   rg.ExternalID,
			PGN:          rg.PGN,
			White:        rg.White,
			Black:        rg.Black,
			WhiteElo:     rg.WhiteElo,
			BlackElo:     rg.BlackElo,
			TimeControl:  rg.TimeControl,
			TimeCategory: models.ClassifyTimeCategory(rg.TimeControl),
			Rated:        rg.Rated,
			EndDate:      rg.EndTime,
			Result:       ResultFor(rg, usernameLower),
		}
		if err := o.Store.UpsertGame(game); err != nil {
			return fmt.Errorf("upsert game %s: %w", rg.ExternalID, err)
		}
	}

	games, err := o.Store.ListGamesByUser(usernameLower)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}
	job.TotalGames = len(games)
	o.saveJob(job)
	return nil
}

// ResultFor derives the owning user's win/loss/draw outcome from a raw
// fetched game's reported winner side.
func ResultFor(rg RawGame, usernameLower string) models.Result {
	whiteIsUser := models.NormalizeUsername(rg.White) == usernameLower
	switch rg.Result {
	case "white":
		if whiteIsUser {
			return models.ResultWin
		}
		return models.ResultLoss
	case "black":
		if whiteIsUser {
			return models.ResultLoss
		}
		return models.ResultWin
	default:
		return models.ResultDraw
	}
}

// stageParse parses positions for every game not yet parsed, identified by
// the absence of any position row.
func (o *Orchestrator) stageParse(usernameLower string, job *models.AnalysisJob) error {
	games, err := o.Store.ListGamesByUser(usernameLower)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}

	for _, game := range games {
		existing, err := o.Store.ListPositions(game.ID)
		if err != nil {
			return fmt.Errorf("list positions for game %s: %w", game.ID, err)
		}
		if len(existing) > 0 {
			if !game.PositionsParsed {
				game.PositionsParsed = true
				if err := o.Store.UpsertGame(game); err != nil {
					return fmt.Errorf("upsert game %s: %w", game.ID, err)
				}
			}
			continue
		}

		positions, err := o.Parser.ParseGame(game.ID, game.PGN)
		if err != nil {
			logrus.WithField("gameId", game.ID).WithError(err).Warn("skipping game with unparseable PGN")
			continue
		}
		for _, pos := range positions {
			if err := o.Store.UpsertPosition(pos); err != nil {
				return fmt.Errorf("upsert position %s/%d: %w", game.ID, pos.Ply, err)
			}
		}

		game.PositionsParsed = true
		if err := o.Store.UpsertGame(game); err != nil {
			return fmt.Errorf("upsert game %s: %w", game.ID, err)
		}
	}
	return nil
}

// stageEvaluate screening-depth-evaluates every position lacking an eval,
// in ply order within each game.
func (o *Orchestrator) stageEvaluate(usernameLower string, job *models.AnalysisJob) error {
	games, err := o.Store.ListGamesByUser(usernameLower)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}

	analyzed := 0
	for _, game := range games {
		positions, err := o.Store.ListPositions(game.ID)
		if err != nil {
			return fmt.Errorf("list positions for game %s: %w", game.ID, err)
		}
		if len(positions) == 0 {
			continue
		}

		allDone := true
		for i := range positions {
			pos := &positions[i]
			if pos.Eval != nil && !pos.EvalFailed {
				continue
			}
			o.Evaluator.EvaluateScreening(pos)
			if err := o.Store.UpsertPosition(*pos); err != nil {
				return fmt.Errorf("upsert position %s/%d: %w", game.ID, pos.Ply, err)
			}
			if pos.Eval == nil {
				allDone = false
			}
		}
		if allDone {
			analyzed++
		}
	}

	job.AnalyzedGames = analyzed
	o.saveJob(job)
	return nil
}

// stageAccuracyAndPuzzles runs puzzle generation/classification for any game
// whose positions are now fully evaluated and does not yet have puzzles
// materialized. It does not compute per-game accuracy: Game.AccuracyWhite
// and Game.AccuracyBlack are left unset here, and the read endpoints derive
// accuracy from the stored Position.Eval values instead.
func (o *Orchestrator) stageAccuracyAndPuzzles(usernameLower string, job *models.AnalysisJob) error {
	games, err := o.Store.ListGamesByUser(usernameLower)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}

	created := 0
	for _, game := range games {
		positions, err := o.Store.ListPositions(game.ID)
		if err != nil {
			return fmt.Errorf("list positions for game %s: %w", game.ID, err)
		}
		if len(positions) == 0 || !allEvaluated(positions) {
			continue
		}

		existingPuzzles, err := o.Store.ListPuzzlesByGame(game.ID)
		if err != nil {
			return fmt.Errorf("list puzzles for game %s: %w", game.ID, err)
		}
		if len(existingPuzzles) > 0 {
			continue
		}

		userSide := game.UserColor()

		puzzles, err := o.Puzzles.Generate(game.ID, userSide, positions, game.Rated, game.TimeCategory)
		if err != nil {
			logrus.WithField("gameId", game.ID).WithError(err).Warn("puzzle generation failed for game")
			continue
		}
		for _, puzzle := range puzzles {
			if err := o.Store.UpsertPuzzle(puzzle); err != nil {
				return fmt.Errorf("upsert puzzle %s/%d: %w", game.ID, puzzle.Ply, err)
			}
			created++
		}
	}

	job.PuzzlesCreated += created
	o.saveJob(job)
	return nil
}

func allEvaluated(positions []models.Position) bool {
	for _, pos := range positions {
		if pos.Eval == nil && !pos.EvalFailed {
			return false
		}
	}
	return true
}
