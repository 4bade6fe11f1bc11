package services

import (
	"math"
	"testing"

	"github.com/chess-arena/analytics-backend/internal/models"
)

func TestWinPercentFormula(t *testing.T) {
	svc := NewAccuracyService()

	testCases := []struct {
		cp          int
		expectedWP  float64
		tolerance   float64
		description string
	}{
		{0, 50.0, 0.01, "equal position is 50%"},
		{100, 59.10, 0.05, "+100cp"},
		{-100, 40.90, 0.05, "-100cp"},
	}

	for _, tc := range testCases {
		got := svc.WinPercent(tc.cp)
		if math.Abs(got-tc.expectedWP) > tc.tolerance {
			t.Errorf("%s: WinPercent(%d) = %.4f, want %.4f ± %.4f", tc.description, tc.cp, got, tc.expectedWP, tc.tolerance)
		}
	}
}

func TestMoveAccuracyFormula(t *testing.T) {
	svc := NewAccuracyService()

	wpAt := func(cp int) float64 { return svc.WinPercent(cp) }

	t.Run("no WP loss gives 100", func(t *testing.T) {
		got := svc.MoveAccuracy(wpAt(100), wpAt(100))
		if got != 100 {
			t.Errorf("expected 100, got %.4f", got)
		}
	})

	t.Run("+100 to -200 gives ~44", func(t *testing.T) {
		got := svc.MoveAccuracy(wpAt(100), wpAt(-200))
		if math.Abs(got-44) > 1 {
			t.Errorf("expected ~44, got %.4f", got)
		}
	})
}

func TestGameAccuracyWinsorizedHarmonicMean(t *testing.T) {
	svc := NewAccuracyService()

	// A single catastrophic 0% move should be raised to the winsor floor of
	// 24 before the harmonic mean is taken, so the game score should stay
	// well above 0.
	acc := svc.GameAccuracy([]float64{100, 100, 0, 100})
	if acc <= 24 {
		t.Errorf("expected winsorized accuracy above the floor, got %.4f", acc)
	}
	if acc >= 100 {
		t.Errorf("expected the floored move to still pull accuracy down, got %.4f", acc)
	}
}

// TestBuildMoveRecordsFlipsByMoverColor guards against computing wpBefore/
// wpAfter with a fixed before-unflipped/after-flipped rule instead of
// branching on which side the user played: a White blunder and the
// mirrored Black blunder must both score as severe drops, not as a
// perfect move for whichever color doesn't match the hardcoded direction.
func TestBuildMoveRecordsFlipsByMoverColor(t *testing.T) {
	svc := NewAccuracyService()
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

	t.Run("white blunder", func(t *testing.T) {
		positions := []models.Position{
			{Ply: 1, FEN: fen, SideToMove: models.SideWhite, Eval: intPtr(50)},
			{Ply: 2, FEN: fen, SideToMove: models.SideBlack, Eval: intPtr(-300)},
		}
		records := svc.BuildMoveRecords("g1", models.SideWhite, positions)
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		if records[0].Accuracy >= 50 {
			t.Errorf("expected a severe blunder to score low, got accuracy %.2f", records[0].Accuracy)
		}
	})

	t.Run("black blunder", func(t *testing.T) {
		positions := []models.Position{
			{Ply: 1, FEN: fen, SideToMove: models.SideBlack, Eval: intPtr(-50)},
			{Ply: 2, FEN: fen, SideToMove: models.SideWhite, Eval: intPtr(300)},
		}
		records := svc.BuildMoveRecords("g1", models.SideBlack, positions)
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		if records[0].Accuracy >= 50 {
			t.Errorf("expected a severe blunder to score low, got accuracy %.2f", records[0].Accuracy)
		}
	})
}

func TestTimeCategoryBoundaries(t *testing.T) {
	testCases := []struct {
		timeControl string
		want        string
	}{
		{"60", "bullet"},
		{"180", "blitz"},
		{"179+2", "bullet"},
		{"600+0", "rapid"},
		{"599", "blitz"},
	}

	for _, tc := range testCases {
		got := string(models.ClassifyTimeCategory(tc.timeControl))
		if got != tc.want {
			t.Errorf("ClassifyTimeCategory(%q) = %s, want %s", tc.timeControl, got, tc.want)
		}
	}
}
