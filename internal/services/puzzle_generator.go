package services

import (
	"fmt"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/notnil/chess"
)

// ReviewEvaluator re-evaluates a single FEN at review depth, returning the
// engine's top move, its PV and the resulting centipawn score from the
// side-to-move's perspective. Implemented by evaluator.go's engine pool;
// the puzzle generator only depends on this narrow interface so it can be
// tested without a real engine.
type ReviewEvaluator interface {
	Review(fen string) (bestMoveUci string, evalCp int, pv []string, ok bool)
}

// PuzzleGenerator mines mistakes out of a fully screened game by walking
// its positions in ply order and scanning for evaluation drops past the
// mistake threshold.
type PuzzleGenerator struct {
	Reviewer ReviewEvaluator
	Prober   NullMoveProber
}

// NewPuzzleGenerator builds a generator around a review-depth evaluator and
// an (optional) null-move prober for the classifier's defending/attacking
// steps.
func NewPuzzleGenerator(reviewer ReviewEvaluator, prober NullMoveProber) *PuzzleGenerator {
	return &PuzzleGenerator{Reviewer: reviewer, Prober: prober}
}

const (
	mistakeThresholdCp  = -50
	blunderThresholdCp  = -300
	openingSkipPlies    = 6
	missedWinBeforeCp   = 150
	missedWinAfterCp    = 50
	missedSaveBeforeCp  = -150
	missedSaveAfterCp   = -300
	maxPVTruncate       = 8
)

// Generate walks a game's screened positions and returns one Puzzle per
// confirmed mistake by the named user. gameID/userSide identify which side
// of the game belongs to the user whose mistakes are mined; positions must
// already carry a screening-depth Eval (eval_failed positions are skipped).
func (g *PuzzleGenerator) Generate(gameID string, userSide models.Side, positions []models.Position, rated bool, timeCategory models.TimeCategory) ([]models.Puzzle, error) {
	var puzzles []models.Puzzle

	for i, pos := range positions {
		if pos.SideToMove != userSide {
			continue
		}
		if pos.Ply <= openingSkipPlies {
			continue
		}
		if pos.EvalFailed || pos.Eval == nil {
			continue
		}

		evalBeforeCp := moverEval(*pos.Eval, userSide)
		var evalAfterCp int
		if i+1 < len(positions) && positions[i+1].Eval != nil {
			evalAfterCp = moverEval(*positions[i+1].Eval, userSide)
		} else {
			continue
		}

		deltaCp := evalAfterCp - evalBeforeCp
		if deltaCp > mistakeThresholdCp {
			continue
		}

		if len(pos.PV) > 0 && pos.PV[0] == pos.MoveUCI {
			continue
		}

		if g.Reviewer == nil {
			continue
		}
		bestMoveUci, _, pv, ok := g.Reviewer.Review(pos.FEN)
		if !ok {
			continue
		}
		// After the played move the opponent is to move, so negate its
		// side-to-move score to get the mover's view.
		_, opponentEvalAfter, _, ok := g.Reviewer.Review(positions[i+1].FEN)
		if !ok {
			continue
		}
		reviewEvalAfter := -opponentEvalAfter
		reviewDelta := reviewEvalAfter - evalBeforeCp
		if reviewDelta > mistakeThresholdCp {
			continue
		}

		severity := SeverityFor(evalBeforeCp, evalAfterCp, deltaCp)

		truncatedPV := truncatePV(pv, userSide)

		boardPos, err := PositionFromFEN(pos.FEN)
		if err != nil {
			return nil, fmt.Errorf("puzzle setup position: %w", err)
		}
		mover := chess.White
		if userSide == models.SideBlack {
			mover = chess.Black
		}

		ctx := MotifContext{
			Before:       boardPos,
			BestMove:     nil,
			PVUci:        truncatedPV,
			Mover:        mover,
			EvalBeforeCp: evalBeforeCp,
			EvalAfterCp:  reviewEvalAfter,
		}
		if after, move, err := applyUCIMove(boardPos, bestMoveUci); err == nil {
			ctx.After = after
			ctx.BestMove = move
		}

		classifier := NewClassifierService(g.Prober)
		result := classifier.Classify(ctx, pos.Ply)

		puzzle := models.Puzzle{
			GameID:        gameID,
			Ply:           pos.Ply,
			FEN:           pos.FEN,
			SideToMove:    pos.SideToMove,
			PlayedMoveUCI: pos.MoveUCI,
			BestMoveUCI:   bestMoveUci,
			PVMoves:       truncatedPV,
			EvalBeforeCp:  evalBeforeCp,
			EvalAfterCp:   reviewEvalAfter,
			DeltaCp:       reviewDelta,
			RequiredMoves: models.RequiredMovesFor(truncatedPV),
			Category:      result.Category,
			Severity:      severity,
			Labels:        result.Labels,
			Rated:         rated,
			TimeCategory:  timeCategory,
		}
		if i > 0 {
			puzzle.SetupFEN = positions[i-1].FEN
			puzzle.SetupMoveUCI = positions[i-1].MoveUCI
		}

		puzzles = append(puzzles, puzzle)
	}

	return puzzles, nil
}

// SeverityFor implements §4.4 step 4's severity cascade.
func SeverityFor(evalBeforeCp, evalAfterCp, deltaCp int) models.Severity {
	if deltaCp <= blunderThresholdCp {
		return models.SeverityBlunder
	}
	if evalBeforeCp >= missedWinBeforeCp && evalAfterCp < missedWinAfterCp {
		return models.SeverityMissedWin
	}
	if evalBeforeCp >= missedSaveBeforeCp && evalAfterCp <= missedSaveAfterCp {
		return models.SeverityMissedSave
	}
	return models.SeverityMistake
}

// truncatePV caps a review-depth PV at 8 plies.
// TODO: truncate earlier at the first opponent deviation once per-ply PV
// re-scoring is wired in; for now the fixed cap is the only bound applied.
func truncatePV(pv []string, userSide models.Side) []string {
	if len(pv) > maxPVTruncate {
		return pv[:maxPVTruncate]
	}
	return pv
}

// applyUCIMove finds the legal move matching a UCI string from pos and
// returns the resulting position and the move played.
func applyUCIMove(pos *chess.Position, uci string) (*chess.Position, *chess.Move, error) {
	for _, mv := range pos.ValidMoves() {
		if moveToUCI(mv) == uci {
			return pos.Update(mv), mv, nil
		}
	}
	return nil, nil, fmt.Errorf("move %s not legal in position", uci)
}
