package services

import (
	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/notnil/chess"
)

// NullMoveProber answers "what is the evaluation, from the side-to-move's
// perspective, of this position" for a position reached by flipping the
// side to move (see motifs.go's nullMove). The classifier never searches
// itself — it is handed a prober backed by the engine pool so that the
// defending/attacking cascade steps can ask "what would happen if the
// mover passed" without owning an engine.
type NullMoveProber func(pos *chess.Position) (evalCp int, ok bool)

// ClassifierService assigns a puzzle's category via the §4.5 priority
// cascade, consuming the same MotifContext the motif detectors use plus a
// null-move evaluation oracle for the defending/attacking steps.
type ClassifierService struct {
	Prober NullMoveProber
}

// NewClassifierService builds a classifier around the given null-move
// evaluation oracle. A nil prober disables cascade steps 5 and 6 (they
// simply never match, falling through to strategic).
func NewClassifierService(prober NullMoveProber) *ClassifierService {
	return &ClassifierService{Prober: prober}
}

// ClassifyResult carries the label set, the chosen category and the cascade
// step that produced it, for diagnostics and for the /classify-test surface.
type ClassifyResult struct {
	Labels       []models.Motif
	Category     models.Category
	CascadeStep  int
}

// ColorForSide converts the storage layer's Side into notnil/chess's Color,
// the boundary conversion every caller building a MotifContext from a
// models.Position/Puzzle needs.
func ColorForSide(side models.Side) chess.Color {
	if side == models.SideBlack {
		return chess.Black
	}
	return chess.White
}

// ClassifyPuzzleFieldsInput mirrors the subset of models.Puzzle's fields the
// /classify-test endpoint accepts, grounded on spec.md §6's "body is the
// puzzle fields" framing.
type ClassifyPuzzleFieldsInput struct {
	FEN           string
	SideToMove    chess.Color
	PlayedMoveUCI string
	BestMoveUCI   string
	PVMoves       []string
	EvalBeforeCp  int
	EvalAfterCp   int
}

// ClassifyPuzzleFields is the pure-function entry point behind POST
// /classify-test: it rebuilds a MotifContext from raw puzzle fields (no
// stored Position/Game lookup, no engine re-evaluation) and runs Classify.
func (c *ClassifierService) ClassifyPuzzleFields(in ClassifyPuzzleFieldsInput) (ClassifyResult, error) {
	before, err := PositionFromFEN(in.FEN)
	if err != nil {
		return ClassifyResult{}, err
	}

	ctx := MotifContext{
		Before:       before,
		PVUci:        in.PVMoves,
		Mover:        in.SideToMove,
		EvalBeforeCp: in.EvalBeforeCp,
		EvalAfterCp:  in.EvalAfterCp,
	}
	if after, move, err := applyUCIMove(before, in.BestMoveUCI); err == nil {
		ctx.After = after
		ctx.BestMove = move
	}

	ply := FullmovePly(in.FEN)
	return c.Classify(ctx, ply), nil
}

// Classify runs the full motif table then the seven-step priority cascade,
// stopping at the first match.
func (c *ClassifierService) Classify(ctx MotifContext, ply int) ClassifyResult {
	labels := DetectMotifs(ctx)
	labelSet := map[models.Motif]bool{}
	for _, l := range labels {
		labelSet[l] = true
	}

	// Step 1: mate-signal motifs always win.
	for motif := range models.MateSignalMotifs {
		if labelSet[motif] {
			return ClassifyResult{Labels: labels, Category: models.CategoryTactics, CascadeStep: 1}
		}
	}

	// Step 2: opening by ply.
	if ply <= 24 {
		return ClassifyResult{Labels: labels, Category: models.CategoryOpening, CascadeStep: 2}
	}

	// Step 3: endgame by remaining major+minor material.
	if ctx.After != nil && CountMajorMinorPieces(ctx.After) < 7 {
		return ClassifyResult{Labels: labels, Category: models.CategoryEndgame, CascadeStep: 3}
	}

	// Step 4: remaining tactical motifs.
	for motif := range models.RemainingTacticalMotifs {
		if labelSet[motif] {
			return ClassifyResult{Labels: labels, Category: models.CategoryTactics, CascadeStep: 4}
		}
	}

	// Step 5: defending — the mover's best move parries an opponent threat
	// found by probing "what if mover passed instead".
	if c.Prober != nil && ctx.Before != nil {
		if passed := nullMove(ctx.Before); passed != nil {
			if evalCp, ok := c.Prober(passed); ok {
				// evalCp is from the passed position's side-to-move
				// perspective, i.e. the opponent's — a large positive
				// score there means the opponent had a winning reply
				// the mover's actual move had to parry.
				if evalCp >= 300 {
					return ClassifyResult{Labels: labels, Category: models.CategoryDefending, CascadeStep: 5}
				}
			}
		}
	}

	// Step 6: attacking — the best move creates a concrete threat (null-move
	// probe from the opponent's side after the move finds a mover win) and
	// the mover's eval after is at least +50.
	if c.Prober != nil && ctx.After != nil && ctx.EvalAfterCp >= 50 {
		if passed := nullMove(ctx.After); passed != nil {
			if evalCp, ok := c.Prober(passed); ok {
				// Now evalCp is from the opponent's perspective after
				// passing; a large negative score means the mover has a
				// winning continuation the opponent must stop.
				if evalCp <= -300 {
					return ClassifyResult{Labels: labels, Category: models.CategoryAttacking, CascadeStep: 6}
				}
			}
		}
	}

	// Step 7: fallback.
	return ClassifyResult{Labels: labels, Category: models.CategoryStrategic, CascadeStep: 7}
}
