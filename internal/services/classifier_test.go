package services

import (
	"testing"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/notnil/chess"
)

// stubProber returns successive fixed readings for each nullMove probe the
// classifier makes, in call order, so a single test case can drive both the
// defending (step 5) and attacking (step 6) probes without a real engine.
func stubProber(readings ...struct {
	evalCp int
	ok     bool
}) NullMoveProber {
	i := 0
	return func(pos *chess.Position) (int, bool) {
		if i >= len(readings) {
			return 0, false
		}
		r := readings[i]
		i++
		return r.evalCp, r.ok
	}
}

func reading(evalCp int, ok bool) struct {
	evalCp int
	ok     bool
} {
	return struct {
		evalCp int
		ok     bool
	}{evalCp, ok}
}

// TestClassifyConcreteScenarios covers the six named board scenarios the
// priority cascade must resolve to the stated category: an opening move
// still within the opening ply window, a quiet pawn shield parrying a
// queen's threat, a bishop sac-and-fork winning material on f7, a knight
// fork on a queen and rook, a king-and-pawn endgame move, and a quiet
// developing move with no tactical content.
func TestClassifyConcreteScenarios(t *testing.T) {
	t.Run("opening", func(t *testing.T) {
		fen := "r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4"
		before, err := PositionFromFEN(fen)
		if err != nil {
			t.Fatalf("parse fen: %v", err)
		}
		ctx := MotifContext{
			Before:       before,
			PVUci:        []string{"d2d3"},
			Mover:        chess.White,
			EvalBeforeCp: 30,
			EvalAfterCp:  -20,
		}
		if after, move, err := applyUCIMove(before, "d2d3"); err == nil {
			ctx.After = after
			ctx.BestMove = move
		}

		c := NewClassifierService(nil)
		result := c.Classify(ctx, FullmovePly(fen))
		if result.Category != models.CategoryOpening {
			t.Errorf("expected opening, got %s (step %d)", result.Category, result.CascadeStep)
		}
	})

	t.Run("defending", func(t *testing.T) {
		fen := "r1b2rk1/pp1n1ppp/3qp3/7Q/8/2P2N2/PPB2PPP/R3R1K1 b - - 0 14"
		before, err := PositionFromFEN(fen)
		if err != nil {
			t.Fatalf("parse fen: %v", err)
		}
		ctx := MotifContext{
			Before:       before,
			PVUci:        []string{"g7g6"},
			Mover:        chess.Black,
			EvalBeforeCp: 80,
			EvalAfterCp:  80,
		}
		if after, move, err := applyUCIMove(before, "g7g6"); err == nil {
			ctx.After = after
			ctx.BestMove = move
		}

		prober := stubProber(reading(400, true))
		c := NewClassifierService(prober)
		result := c.Classify(ctx, FullmovePly(fen))
		if result.Category != models.CategoryDefending {
			t.Errorf("expected defending, got %s (step %d)", result.Category, result.CascadeStep)
		}
	})

	t.Run("attacking", func(t *testing.T) {
		fen := "r1b1k2r/ppppqppp/2n2n2/4N3/2B1P3/8/PPPP1PPP/RNBQK2R w KQkq - 0 16"
		before, err := PositionFromFEN(fen)
		if err != nil {
			t.Fatalf("parse fen: %v", err)
		}
		ctx := MotifContext{
			Before:       before,
			PVUci:        []string{"c4f7", "e8d8", "f7g6"},
			Mover:        chess.White,
			EvalBeforeCp: 60,
			EvalAfterCp:  150,
		}
		if after, move, err := applyUCIMove(before, "c4f7"); err == nil {
			ctx.After = after
			ctx.BestMove = move
		}

		prober := stubProber(reading(0, true), reading(-400, true))
		c := NewClassifierService(prober)
		result := c.Classify(ctx, FullmovePly(fen))
		if result.Category != models.CategoryAttacking {
			t.Errorf("expected attacking, got %s (step %d)", result.Category, result.CascadeStep)
		}
	})

	t.Run("tactics fork", func(t *testing.T) {
		fen := "6k1/ppp2ppp/3q1r2/8/8/2NP4/PPP2PPP/6K1 w - - 0 25"
		before, err := PositionFromFEN(fen)
		if err != nil {
			t.Fatalf("parse fen: %v", err)
		}
		ctx := MotifContext{
			Before:       before,
			PVUci:        []string{"c3e4", "d6d8", "e4f6"},
			Mover:        chess.White,
			EvalBeforeCp: 0,
			EvalAfterCp:  500,
		}
		if after, move, err := applyUCIMove(before, "c3e4"); err == nil {
			ctx.After = after
			ctx.BestMove = move
		}

		c := NewClassifierService(nil)
		result := c.Classify(ctx, FullmovePly(fen))
		if result.Category != models.CategoryTactics {
			t.Errorf("expected tactics, got %s (step %d)", result.Category, result.CascadeStep)
		}
		found := false
		for _, l := range result.Labels {
			if l == models.MotifFork {
				found = true
			}
		}
		if !found {
			t.Errorf("expected fork among labels, got %v", result.Labels)
		}
	})

	t.Run("endgame", func(t *testing.T) {
		fen := "8/8/4kpp1/8/4PP2/6K1/8/8 w - - 0 40"
		before, err := PositionFromFEN(fen)
		if err != nil {
			t.Fatalf("parse fen: %v", err)
		}
		ctx := MotifContext{
			Before:       before,
			PVUci:        []string{"g3g4"},
			Mover:        chess.White,
			EvalBeforeCp: 30,
			EvalAfterCp:  -20,
		}
		if after, move, err := applyUCIMove(before, "g3g4"); err == nil {
			ctx.After = after
			ctx.BestMove = move
		}

		c := NewClassifierService(nil)
		result := c.Classify(ctx, FullmovePly(fen))
		if result.Category != models.CategoryEndgame {
			t.Errorf("expected endgame, got %s (step %d)", result.Category, result.CascadeStep)
		}
	})

	t.Run("strategic", func(t *testing.T) {
		fen := "r1bq1rk1/pp3ppp/2nbpn2/2pp4/3P4/2NBPN2/PPQ2PPP/R1B2RK1 w - - 0 18"
		before, err := PositionFromFEN(fen)
		if err != nil {
			t.Fatalf("parse fen: %v", err)
		}
		ctx := MotifContext{
			Before:       before,
			PVUci:        []string{"e3e4"},
			Mover:        chess.White,
			EvalBeforeCp: 15,
			EvalAfterCp:  -35,
		}
		if after, move, err := applyUCIMove(before, "e3e4"); err == nil {
			ctx.After = after
			ctx.BestMove = move
		}

		prober := stubProber(reading(0, true), reading(0, true))
		c := NewClassifierService(prober)
		result := c.Classify(ctx, FullmovePly(fen))
		if result.Category != models.CategoryStrategic {
			t.Errorf("expected strategic, got %s (step %d)", result.Category, result.CascadeStep)
		}
	})
}

func TestClassifyIsPureAndDeterministic(t *testing.T) {
	fen := "r1b2rk1/pp1n1ppp/3qp3/7Q/8/2P2N2/PPB2PPP/R3R1K1 b - - 0 14"
	before, err := PositionFromFEN(fen)
	if err != nil {
		t.Fatalf("parse fen: %v", err)
	}
	ctx := MotifContext{
		Before:       before,
		PVUci:        []string{"g7g6"},
		Mover:        chess.Black,
		EvalBeforeCp: 80,
		EvalAfterCp:  80,
	}
	if after, move, err := applyUCIMove(before, "g7g6"); err == nil {
		ctx.After = after
		ctx.BestMove = move
	}

	c := NewClassifierService(stubProber(reading(400, true)))
	first := c.Classify(ctx, FullmovePly(fen))

	c2 := NewClassifierService(stubProber(reading(400, true)))
	second := c2.Classify(ctx, FullmovePly(fen))

	if first.Category != second.Category || len(first.Labels) != len(second.Labels) {
		t.Errorf("expected identical results across invocations, got %+v vs %+v", first, second)
	}
}
