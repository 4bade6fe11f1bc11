package services

import (
	"github.com/chess-arena/analytics-backend/internal/models"
)

// classifiedMove is one user-turn move annotated with both the §4.3 WP-based
// accuracy figures and the §4.5 category the position itself belongs to
// (computed from the position's own screening-depth best move, independent
// of whether the user actually played it).
type classifiedMove struct {
	Phase     models.GamePhase
	Category  models.Category
	WPBefore  float64
	WPAfter   float64
	IsBest    bool
	HasMotif  bool
	Severity  models.Severity
	IsMistake bool
}

// classifyUserMoves walks one game's positions for userSide, classifying
// each move's position via the screening-depth PV as its own "best move",
// so a category can be attributed to the position independent of what the
// user actually played.
func classifyUserMoves(classifier *ClassifierService, accuracy *AccuracyService, userSide models.Side, positions []models.Position) []classifiedMove {
	var out []classifiedMove
	mover := ColorForSide(userSide)

	for i, pos := range positions {
		if pos.SideToMove != userSide || pos.Eval == nil || pos.EvalFailed {
			continue
		}
		if i+1 >= len(positions) || positions[i+1].Eval == nil {
			continue
		}
		if len(pos.PV) == 0 {
			continue
		}

		evalBeforeCp := moverEval(*pos.Eval, userSide)
		evalAfterCp := moverEval(*positions[i+1].Eval, userSide)

		wpBefore := accuracy.WinPercent(evalBeforeCp)
		wpAfter := accuracy.WinPercent(evalAfterCp)
		moveAcc := accuracy.MoveAccuracy(wpBefore, wpAfter)
		isBest := pos.PV[0] == pos.MoveUCI
		isMistake := !isBest && moveAcc < 100

		before, err := PositionFromFEN(pos.FEN)
		if err != nil {
			continue
		}
		ctx := MotifContext{
			Before:       before,
			PVUci:        pos.PV,
			Mover:        mover,
			EvalBeforeCp: evalBeforeCp,
			EvalAfterCp:  evalAfterCp,
		}
		if after, move, err := applyUCIMove(before, pos.PV[0]); err == nil {
			ctx.After = after
			ctx.BestMove = move
		}

		result := classifier.Classify(ctx, pos.Ply)

		var severity models.Severity
		if isMistake {
			severity = SeverityFor(evalBeforeCp, evalAfterCp, evalAfterCp-evalBeforeCp)
		}

		out = append(out, classifiedMove{
			Phase:     Phase(pos.Ply, before),
			Category:  result.Category,
			WPBefore:  wpBefore,
			WPAfter:   wpAfter,
			IsBest:    isBest,
			HasMotif:  len(result.Labels) > 0,
			Severity:  severity,
			IsMistake: isMistake,
		})
	}
	return out
}

// GamePositions is one game's evaluated positions plus which side the user
// under analysis played, the input ComputeObservedRates needs per game.
type GamePositions struct {
	GameID    string
	UserSide  models.Side
	Positions []models.Position
}

// ComputeObservedRates computes the §4.6 six-category observed-rate summary
// (0-100 scale) for one user restricted to the games the caller has already
// filtered (e.g. by time category), classifying every evaluated move rather
// than only puzzle-worthy mistakes.
func ComputeObservedRates(classifier *ClassifierService, accuracy *AccuracyService, games []GamePositions) ObservedRates {
	gameMoves := make(map[string][]classifiedMove, len(games))
	var all []classifiedMove
	for _, g := range games {
		moves := classifyUserMoves(classifier, accuracy, g.UserSide, g.Positions)
		gameMoves[g.GameID] = moves
		all = append(all, moves...)
	}

	attacking := bestMoveRateFor(all, models.CategoryAttacking)
	defending := 1 - missedSaveRateFor(all)
	tactics := 1 - blunderRateOnTactical(all)
	opening := bestMoveRateForPhase(all, models.PhaseOpening)
	endgame := phaseAccuracy(all, models.PhaseEndgame)
	overall := overallAccuracy(gameMoves, accuracy)
	strategic := clamp(overall-((openingAccuracy(all)+endgame)/2), 0, 100)

	return ObservedRates{
		Attacking: attacking * 100,
		Defending: defending * 100,
		Tactics:   tactics * 100,
		Strategic: strategic,
		Opening:   opening * 100,
		Endgame:   endgame,
	}
}

func bestMoveRateFor(moves []classifiedMove, category models.Category) float64 {
	total, best := 0, 0
	for _, m := range moves {
		if m.Category != category {
			continue
		}
		total++
		if m.IsBest {
			best++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(best) / float64(total)
}

func bestMoveRateForPhase(moves []classifiedMove, phase models.GamePhase) float64 {
	total, best := 0, 0
	for _, m := range moves {
		if m.Phase != phase {
			continue
		}
		total++
		if m.IsBest {
			best++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(best) / float64(total)
}

func openingAccuracy(moves []classifiedMove) float64 {
	return phaseAccuracy(moves, models.PhaseOpening)
}

func phaseAccuracy(moves []classifiedMove, phase models.GamePhase) float64 {
	var sum float64
	count := 0
	for _, m := range moves {
		if m.Phase != phase {
			continue
		}
		acc := 100.0
		if m.WPAfter < m.WPBefore {
			acc = clamp(100-(m.WPBefore-m.WPAfter), 0, 100)
		}
		sum += acc
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func missedSaveRateFor(moves []classifiedMove) float64 {
	total, missed := 0, 0
	for _, m := range moves {
		if m.Category != models.CategoryDefending {
			continue
		}
		total++
		if m.IsMistake && m.Severity == models.SeverityMissedSave {
			missed++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(missed) / float64(total)
}

func blunderRateOnTactical(moves []classifiedMove) float64 {
	total, blunders := 0, 0
	for _, m := range moves {
		if !m.HasMotif {
			continue
		}
		total++
		if isBlunderMove(m.WPBefore, m.WPAfter) {
			blunders++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(blunders) / float64(total)
}

func overallAccuracy(gameMoves map[string][]classifiedMove, accuracy *AccuracyService) float64 {
	if len(gameMoves) == 0 {
		return 0
	}
	var sum float64
	for _, moves := range gameMoves {
		accs := make([]float64, 0, len(moves))
		for _, m := range moves {
			acc := 100.0
			if m.WPAfter < m.WPBefore {
				acc = clamp(100-(m.WPBefore-m.WPAfter), 0, 100)
			}
			accs = append(accs, acc)
		}
		sum += accuracy.GameAccuracy(accs)
	}
	return sum / float64(len(gameMoves))
}
