package services

import (
	"math"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/notnil/chess"
)

// AccuracyService turns per-move centipawn evaluations into per-move,
// per-game and per-phase accuracy figures via a win-probability sigmoid,
// using this system's own literal calibration constants throughout.
type AccuracyService struct{}

// NewAccuracyService creates a new accuracy service.
func NewAccuracyService() *AccuracyService {
	return &AccuracyService{}
}

// winPercentSigmoidK is the literal sigmoid coefficient from §4.3.
const winPercentSigmoidK = 0.00368208

// accuracyBase, accuracyExponent and accuracyOffset are the literal constants
// from §4.3's accuracy formula.
const (
	accuracyBase     = 103.1668
	accuracyExponent = -0.1159
	accuracyOffset   = -3.1669
)

// winsorFloor is the per-move accuracy floor applied before any averaging.
const winsorFloor = 24.0

// WinPercent converts a centipawn score (from the mover's perspective) to a
// win percentage on a 0-100 scale via WP(cp) = 50 + 50*(2/(1+exp(-k*cp))-1).
func (a *AccuracyService) WinPercent(cp int) float64 {
	x := winPercentSigmoidK * float64(cp)
	if x > 700 {
		x = 700
	}
	if x < -700 {
		x = -700
	}
	inner := 2.0/(1.0+math.Exp(-x)) - 1.0
	wp := 50.0 + 50.0*inner
	return clamp(wp, 0, 100)
}

// MoveAccuracy implements §4.3's per-move accuracy rule: a move that does not
// lose win percentage scores 100; otherwise the exponential-decay formula
// applies to the win-percentage drop.
func (a *AccuracyService) MoveAccuracy(wpBefore, wpAfter float64) float64 {
	if wpAfter >= wpBefore {
		return 100
	}
	diff := wpBefore - wpAfter
	acc := accuracyBase*math.Exp(accuracyExponent*diff) + accuracyOffset + 1
	return clamp(acc, 0, 100)
}

// moverEval converts a White-relative centipawn evaluation to the given
// side's own perspective: unflipped for White, negated for Black.
func moverEval(evalCp int, mover models.Side) int {
	if mover == models.SideBlack {
		return -evalCp
	}
	return evalCp
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// winsorize raises every value below winsorFloor up to it.
func winsorize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v < winsorFloor {
			v = winsorFloor
		}
		out[i] = v
	}
	return out
}

// harmonicMean computes the harmonic mean of a winsorized accuracy series;
// it penalizes a single catastrophic move less than an arithmetic mean while
// staying sensitive to it, per §4.3.
func harmonicMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumInv float64
	for _, v := range values {
		if v <= 0 {
			v = 0.001
		}
		sumInv += 1.0 / v
	}
	return float64(len(values)) / sumInv
}

// GameAccuracy computes a single game's winsorized-harmonic-mean per-move
// accuracy for one side.
func (a *AccuracyService) GameAccuracy(moveAccuracies []float64) float64 {
	if len(moveAccuracies) == 0 {
		return 0
	}
	return harmonicMean(winsorize(moveAccuracies))
}

// MoveRecord is one user-turn move's evaluation context, as consumed by the
// accuracy, phase and blunder-rate passes.
type MoveRecord struct {
	GameID   string
	Ply      int
	Phase    models.GamePhase
	WPBefore float64
	WPAfter  float64
	Accuracy float64
	IsBest   bool
}

// PhaseStats summarizes one phase's accuracy, best-move rate and blunder rate
// across a user's games.
type PhaseStats struct {
	Accuracy     float64
	BestMoveRate float64
	BlunderRate  float64
	MoveCount    int
}

// PhaseAccuracy implements §4.3's phase aggregation: winsorize-then-harmonic-
// mean per game, then arithmetic mean across games; best-move rate and
// blunder rate are simple fractions over all moves in the phase.
func (a *AccuracyService) PhaseAccuracy(moves []MoveRecord, phase models.GamePhase) PhaseStats {
	byGame := map[string][]float64{}
	var order []string
	bestCount, blunderCount, total := 0, 0, 0

	for _, m := range moves {
		if m.Phase != phase {
			continue
		}
		total++
		if _, seen := byGame[m.GameID]; !seen {
			order = append(order, m.GameID)
		}
		byGame[m.GameID] = append(byGame[m.GameID], m.Accuracy)
		if m.IsBest {
			bestCount++
		}
		if isBlunderMove(m.WPBefore, m.WPAfter) {
			blunderCount++
		}
	}

	if total == 0 {
		return PhaseStats{}
	}

	var sum float64
	for _, gameID := range order {
		sum += harmonicMean(winsorize(byGame[gameID]))
	}
	avgAccuracy := sum / float64(len(order))

	return PhaseStats{
		Accuracy:     avgAccuracy,
		BestMoveRate: float64(bestCount) / float64(total),
		BlunderRate:  float64(blunderCount) / float64(total),
		MoveCount:    total,
	}
}

// BuildMoveRecords converts one game's evaluated positions into the
// MoveRecords belonging to userSide, skipping any move whose before/after
// eval is unavailable. isBest mirrors the puzzle generator's confirmation
// rule: the played move matches the screening-depth PV's top move.
func (a *AccuracyService) BuildMoveRecords(gameID string, userSide models.Side, positions []models.Position) []MoveRecord {
	var records []MoveRecord
	for i, pos := range positions {
		if pos.SideToMove != userSide || pos.Eval == nil || pos.EvalFailed {
			continue
		}
		if i+1 >= len(positions) || positions[i+1].Eval == nil {
			continue
		}

		wpBefore := a.WinPercent(moverEval(*pos.Eval, userSide))
		wpAfter := a.WinPercent(moverEval(*positions[i+1].Eval, userSide))

		records = append(records, MoveRecord{
			GameID:   gameID,
			Ply:      pos.Ply,
			Phase:    Phase(pos.Ply, mustPosition(pos.FEN)),
			WPBefore: wpBefore,
			WPAfter:  wpAfter,
			Accuracy: a.MoveAccuracy(wpBefore, wpAfter),
			IsBest:   len(pos.PV) > 0 && pos.PV[0] == pos.MoveUCI,
		})
	}
	return records
}

// mustPosition parses a FEN for phase classification, falling back to the
// starting position on a parse failure (never expected for a stored FEN).
func mustPosition(fen string) *chess.Position {
	pos, err := PositionFromFEN(fen)
	if err != nil {
		return chess.NewGame().Position()
	}
	return pos
}

// isBlunderMove implements §4.3's blunder-rate predicate: a WP drop over 10
// points from a starting WP of at least 25 (so moves in already-lost
// positions don't inflate the rate).
func isBlunderMove(wpBefore, wpAfter float64) bool {
	return wpBefore >= 25 && (wpBefore-wpAfter) > 10
}
