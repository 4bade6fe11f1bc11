package services

import (
	"testing"

	"github.com/chess-arena/analytics-backend/internal/models"
)

func intPtr(v int) *int { return &v }

func TestBestMoveRateForCategory(t *testing.T) {
	moves := []classifiedMove{
		{Category: models.CategoryAttacking, IsBest: true},
		{Category: models.CategoryAttacking, IsBest: false},
		{Category: models.CategoryDefending, IsBest: true},
	}
	got := bestMoveRateFor(moves, models.CategoryAttacking)
	if got != 0.5 {
		t.Errorf("expected 0.5, got %.4f", got)
	}
}

func TestPhaseAccuracyMixesPerfectAndDroppedMoves(t *testing.T) {
	moves := []classifiedMove{
		{Phase: models.PhaseOpening, WPBefore: 55, WPAfter: 60},
		{Phase: models.PhaseOpening, WPBefore: 50, WPAfter: 40},
	}
	got := phaseAccuracy(moves, models.PhaseOpening)
	if got <= 0 || got >= 100 {
		t.Errorf("expected a mixed accuracy strictly between 0 and 100, got %.4f", got)
	}
}

func TestMissedSaveRateCountsOnlyDefendingMistakes(t *testing.T) {
	moves := []classifiedMove{
		{Category: models.CategoryDefending, IsMistake: true, Severity: models.SeverityMissedSave},
		{Category: models.CategoryDefending, IsMistake: false},
		{Category: models.CategoryAttacking, IsMistake: true, Severity: models.SeverityMissedSave},
	}
	got := missedSaveRateFor(moves)
	if got != 0.5 {
		t.Errorf("expected 0.5, got %.4f", got)
	}
}

func TestBlunderRateOnTacticalOnlyCountsMotifMoves(t *testing.T) {
	moves := []classifiedMove{
		{HasMotif: true, WPBefore: 80, WPAfter: 20},
		{HasMotif: true, WPBefore: 80, WPAfter: 75},
		{HasMotif: false, WPBefore: 80, WPAfter: 10},
	}
	got := blunderRateOnTactical(moves)
	if got != 0.5 {
		t.Errorf("expected 0.5 (one of two motif moves was a blunder), got %.4f", got)
	}
}

// TestComputeObservedRatesOverRealGame exercises the full per-move
// classification pass (PositionFromFEN -> applyUCIMove -> Classify) over a
// minimal two-ply fixture rather than synthetic classifiedMove values.
func TestComputeObservedRatesOverRealGame(t *testing.T) {
	classifier := NewClassifierService(nil)
	accuracy := NewAccuracyService()

	startFEN := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	afterE4FEN := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

	positions := []models.Position{
		{
			Ply:        1,
			FEN:        startFEN,
			MoveUCI:    "e2e4",
			SideToMove: models.SideWhite,
			Eval:       intPtr(20),
			PV:         []string{"e2e4"},
		},
		{
			Ply:        2,
			FEN:        afterE4FEN,
			SideToMove: models.SideBlack,
			Eval:       intPtr(-15),
		},
	}

	games := []GamePositions{{GameID: "g1", UserSide: models.SideWhite, Positions: positions}}
	rates := ComputeObservedRates(classifier, accuracy, games)

	if rates.Opening < 0 || rates.Opening > 100 {
		t.Errorf("opening rate out of range: %.4f", rates.Opening)
	}
	if rates.Strategic < 0 || rates.Strategic > 100 {
		t.Errorf("strategic rate out of range: %.4f", rates.Strategic)
	}
}
