package services

import (
	"strings"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/notnil/chess"
)

// MotifContext carries everything a detector needs: the position before and
// after the best move, the move itself, the review-depth PV, and the
// mover's evaluation swing. Detectors are pure functions of this context so
// that §8's "classifier is a deterministic pure function" property holds.
type MotifContext struct {
	Before       *chess.Position
	After        *chess.Position
	BestMove     *chess.Move
	PVUci        []string
	Mover        chess.Color
	EvalBeforeCp int
	EvalAfterCp  int
}

// DetectMotifs runs every detector and returns the present labels in the
// fixed table order from §4.5, so output is deterministic for identical
// input.
func DetectMotifs(ctx MotifContext) []models.Motif {
	var labels []models.Motif
	add := func(present bool, m models.Motif) {
		if present {
			labels = append(labels, m)
		}
	}

	pvLongEnough := len(ctx.PVUci) >= 3

	add(hasFork(ctx), models.MotifFork)
	add(hasPin(ctx), models.MotifPin)
	add(hasSkewer(ctx), models.MotifSkewer)
	add(hasDiscoveredAttack(ctx), models.MotifDiscoveredAttack)
	add(hasDoubleAttack(ctx), models.MotifDoubleAttack)
	add(hasRemovalOfDefender(ctx), models.MotifRemovalOfDefender)
	add(hasOverload(ctx), models.MotifOverload)
	add(pvLongEnough && hasDeflection(ctx), models.MotifDeflection)
	add(pvLongEnough && hasIntermezzo(ctx), models.MotifIntermezzo)
	add(hasSacrifice(ctx), models.MotifSacrifice)
	add(pvLongEnough && hasClearance(ctx), models.MotifClearance)
	add(hasBackRank(ctx), models.MotifBackRank)
	add(hasMateThreat(ctx), models.MotifMateThreat)
	add(hasCheckmate(ctx), models.MotifCheckmate)
	add(hasSmotheredMate(ctx), models.MotifSmotheredMate)
	add(hasTrappedPiece(ctx), models.MotifTrappedPiece)
	add(hasXRayBattery(ctx), models.MotifXRayBattery)
	add(hasInterference(ctx), models.MotifInterference)
	add(hasDesperado(ctx), models.MotifDesperado)
	add(pvLongEnough && hasAttraction(ctx), models.MotifAttraction)

	return labels
}

// --- board geometry helpers ---

func fileOf(sq chess.Square) int { return int(sq) % 8 }
func rankOf(sq chess.Square) int { return int(sq) / 8 }

func squareAt(file, rank int) (chess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, false
	}
	return chess.Square(rank*8 + file), true
}

var rookDirs = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
var bishopDirs = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
var allDirs = append(append([][2]int{}, rookDirs...), bishopDirs...)

// nullMove returns a copy of pos with the side to move flipped and the
// en-passant target cleared, the standard null-move trick used to probe
// "what would the opponent (or mover) do if it were their turn without
// having actually moved."
func nullMove(pos *chess.Position) *chess.Position {
	fields := strings.Fields(pos.String())
	if len(fields) < 6 {
		return nil
	}
	if fields[1] == "w" {
		fields[1] = "b"
	} else {
		fields[1] = "w"
	}
	fields[3] = "-"
	flipped, err := PositionFromFEN(strings.Join(fields, " "))
	if err != nil {
		return nil
	}
	return flipped
}

// movesFrom returns the legal moves available to `color` originating at
// `from` in `pos`, flipping the side to move first if necessary.
func movesFrom(pos *chess.Position, color chess.Color, from chess.Square) []*chess.Move {
	p := pos
	if pos.Turn() != color {
		p = nullMove(pos)
		if p == nil {
			return nil
		}
	}
	var out []*chess.Move
	for _, m := range p.ValidMoves() {
		if m.S1() == from {
			out = append(out, m)
		}
	}
	return out
}

// attackedEnemyTargets returns the squares of enemy pieces a piece on `from`
// attacks in `pos`.
func attackedEnemyTargets(pos *chess.Position, color chess.Color, from chess.Square) []chess.Square {
	board := pos.Board()
	var targets []chess.Square
	for _, m := range movesFrom(pos, color, from) {
		target := board.Piece(m.S2())
		if target != chess.NoPiece && target.Color() != color {
			targets = append(targets, m.S2())
		}
	}
	return targets
}

func rayBetween(pos *chess.Position, from chess.Square, dir [2]int) []chess.Square {
	board := pos.Board()
	var squares []chess.Square
	f, r := fileOf(from), rankOf(from)
	for {
		f += dir[0]
		r += dir[1]
		sq, ok := squareAt(f, r)
		if !ok {
			break
		}
		squares = append(squares, sq)
		if board.Piece(sq) != chess.NoPiece {
			break
		}
	}
	return squares
}

func opponentOf(c chess.Color) chess.Color {
	if c == chess.White {
		return chess.Black
	}
	return chess.White
}

func isSlider(pt chess.PieceType) bool {
	return pt == chess.Bishop || pt == chess.Rook || pt == chess.Queen
}

func sliderCoversDir(pt chess.PieceType, dir [2]int) bool {
	diag := dir[0] != 0 && dir[1] != 0
	straight := dir[0] == 0 || dir[1] == 0
	switch pt {
	case chess.Queen:
		return true
	case chess.Rook:
		return straight
	case chess.Bishop:
		return diag
	default:
		return false
	}
}

// --- motif detectors ---

// hasFork: the best move's destination attacks >=2 enemy pieces worth >=3
// pawns, or >=1 piece worth >=5 plus the enemy king.
func hasFork(ctx MotifContext) bool {
	if ctx.BestMove == nil || ctx.After == nil {
		return false
	}
	dest := ctx.BestMove.S2()
	board := ctx.Before.Board()
	movedPiece := board.Piece(ctx.BestMove.S1())
	targets := attackedEnemyTargets(ctx.After, ctx.Mover, dest)

	minorPlus, hasKing, hasHighValue := 0, false, false
	for _, sq := range targets {
		p := ctx.After.Board().Piece(sq)
		if p.Type() == chess.King {
			hasKing = true
			continue
		}
		val := PieceValueCp(p.Type())
		if val >= 300 {
			minorPlus++
		}
		if val >= 500 {
			hasHighValue = true
		}
	}
	_ = movedPiece
	return minorPlus >= 2 || (hasKing && hasHighValue)
}

// hasPin: after the best move, some enemy piece has a friendlier piece of
// higher value directly behind it on a shared ray from one of our sliders.
func hasPin(ctx MotifContext) bool {
	return detectPinOrSkewer(ctx, false)
}

// hasSkewer: as pin, but the higher-value piece is the one in front (attacked first).
func hasSkewer(ctx MotifContext) bool {
	return detectPinOrSkewer(ctx, true)
}

func detectPinOrSkewer(ctx MotifContext, frontIsHigherValue bool) bool {
	if ctx.After == nil {
		return false
	}
	board := ctx.After.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece == chess.NoPiece || piece.Color() != ctx.Mover || !isSlider(piece.Type()) {
			continue
		}
		dirs := allDirs
		if piece.Type() == chess.Rook {
			dirs = rookDirs
		} else if piece.Type() == chess.Bishop {
			dirs = bishopDirs
		}
		for _, dir := range dirs {
			if !sliderCoversDir(piece.Type(), dir) {
				continue
			}
			ray := rayBetween(ctx.After, sq, dir)
			if len(ray) == 0 || board.Piece(ray[len(ray)-1]) == chess.NoPiece {
				continue
			}
			// rayBetween stops at the first piece, so continue the ray past it.
			beyond := rayBetween(ctx.After, ray[len(ray)-1], dir)
			if len(beyond) == 0 || board.Piece(beyond[len(beyond)-1]) == chess.NoPiece {
				continue
			}
			first, second := board.Piece(ray[len(ray)-1]), board.Piece(beyond[len(beyond)-1])
			if first.Color() == ctx.Mover || second.Color() == ctx.Mover {
				continue
			}
			firstVal, secondVal := PieceValueCp(first.Type()), PieceValueCp(second.Type())
			if first.Type() == chess.King {
				firstVal = 100000
			}
			if second.Type() == chess.King {
				secondVal = 100000
			}
			if frontIsHigherValue {
				if firstVal > secondVal && firstVal > 0 {
					return true
				}
			} else if secondVal > firstVal {
				return true
			}
		}
	}
	return false
}

// hasDiscoveredAttack: the moved piece unblocks a friendly slider that now
// attacks an enemy piece or king, which it did not attack before the move.
func hasDiscoveredAttack(ctx MotifContext) bool {
	if ctx.BestMove == nil || ctx.Before == nil || ctx.After == nil {
		return false
	}
	from := ctx.BestMove.S1()
	beforeBoard := ctx.Before.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := beforeBoard.Piece(sq)
		if piece == chess.NoPiece || piece.Color() != ctx.Mover || !isSlider(piece.Type()) || sq == from {
			continue
		}
		beforeTargets := attackedEnemyTargets(ctx.Before, ctx.Mover, sq)
		afterTargets := attackedEnemyTargets(ctx.After, ctx.Mover, sq)
		if len(afterTargets) > len(beforeTargets) {
			return true
		}
	}
	return false
}

// hasDoubleAttack: the best move newly attacks >= 2 distinct enemy targets
// (direct from the destination square, or via discovery).
func hasDoubleAttack(ctx MotifContext) bool {
	if ctx.BestMove == nil || ctx.After == nil {
		return false
	}
	direct := attackedEnemyTargets(ctx.After, ctx.Mover, ctx.BestMove.S2())
	seen := map[chess.Square]bool{}
	for _, s := range direct {
		seen[s] = true
	}
	if hasDiscoveredAttack(ctx) {
		beforeBoard := ctx.Before.Board()
		for sq := chess.A1; sq <= chess.H8; sq++ {
			piece := beforeBoard.Piece(sq)
			if piece == chess.NoPiece || piece.Color() != ctx.Mover || !isSlider(piece.Type()) {
				continue
			}
			for _, s := range attackedEnemyTargets(ctx.After, ctx.Mover, sq) {
				seen[s] = true
			}
		}
	}
	return len(seen) >= 2
}

// hasRemovalOfDefender: the best move captures an enemy piece, and the
// capturing piece, from its starting square, already attacks some other
// enemy piece. Whether the captured piece defended that other piece (alone
// or at all) is not checked.
func hasRemovalOfDefender(ctx MotifContext) bool {
	if ctx.BestMove == nil || ctx.Before == nil {
		return false
	}
	captured := ctx.Before.Board().Piece(ctx.BestMove.S2())
	if captured == chess.NoPiece || captured.Color() == ctx.Mover {
		return false
	}
	enemy := opponentOf(ctx.Mover)
	for sq := chess.A1; sq <= chess.H8; sq++ {
		other := ctx.Before.Board().Piece(sq)
		if other == chess.NoPiece || other.Color() != enemy || sq == ctx.BestMove.S2() {
			continue
		}
		defenders := attackedEnemyTargets(ctx.Before, enemy, ctx.BestMove.S2())
		_ = defenders
		// does the capturing piece already attack `other` from its start square?
		weAttackOther := false
		for _, t := range attackedEnemyTargets(ctx.Before, ctx.Mover, ctx.BestMove.S1()) {
			if t == sq {
				weAttackOther = true
			}
		}
		if weAttackOther {
			return true
		}
	}
	return false
}

// hasOverload: after the best move, some enemy piece attacks >=2 of the
// mover's pieces. Which enemy pieces the mover attacks, and whether one enemy
// piece is the only defender of two of them, are not checked.
func hasOverload(ctx MotifContext) bool {
	if ctx.After == nil {
		return false
	}
	enemy := opponentOf(ctx.Mover)
	board := ctx.After.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		defender := board.Piece(sq)
		if defender == chess.NoPiece || defender.Color() != enemy {
			continue
		}
		defended := attackedEnemyTargets(ctx.After, enemy, sq)
		count := 0
		for _, d := range defended {
			target := board.Piece(d)
			if target != chess.NoPiece {
				count++
			}
		}
		if count >= 2 {
			return true
		}
	}
	return false
}

// hasDeflection: the PV's first move is a check or capture that forces the
// enemy to abandon a defensive duty. Approximated: first PV move is a
// capture or check and the position swings materially in the mover's favor.
func hasDeflection(ctx MotifContext) bool {
	if len(ctx.PVUci) == 0 || ctx.BestMove == nil {
		return false
	}
	if !ctx.BestMove.HasTag(chess.Capture) && !ctx.BestMove.HasTag(chess.Check) {
		return false
	}
	return ctx.EvalAfterCp-ctx.EvalBeforeCp >= 100
}

// hasIntermezzo: the PV contains an intervening check before an expected
// recapture. Approximated: a 3+ ply PV whose best move does not itself
// capture — a zwischenzug inserts a non-capturing (often checking) move
// rather than resolving the exchange immediately.
func hasIntermezzo(ctx MotifContext) bool {
	if len(ctx.PVUci) < 3 || ctx.BestMove == nil || ctx.Before == nil {
		return false
	}
	return ctx.Before.Board().Piece(ctx.BestMove.S2()) == chess.NoPiece
}

// hasSacrifice: best move is a capture of lesser value than the capturing
// piece, or a non-capture that hangs >=3 pawns, yet the PV still ends with
// evalAfter >= evalBefore (from the mover's perspective).
func hasSacrifice(ctx MotifContext) bool {
	if ctx.BestMove == nil || ctx.Before == nil {
		return false
	}
	mover := ctx.Before.Board().Piece(ctx.BestMove.S1())
	captured := ctx.Before.Board().Piece(ctx.BestMove.S2())
	moverVal := PieceValueCp(mover.Type())

	sacrificed := false
	if captured != chess.NoPiece {
		sacrificed = PieceValueCp(captured.Type()) < moverVal
	} else if ctx.After != nil && moverVal >= 300 {
		// the moved piece hangs if any enemy piece attacks its new square
		enemy := opponentOf(ctx.Mover)
		for sq := chess.A1; sq <= chess.H8 && !sacrificed; sq++ {
			p := ctx.After.Board().Piece(sq)
			if p == chess.NoPiece || p.Color() != enemy {
				continue
			}
			for _, t := range attackedEnemyTargets(ctx.After, enemy, sq) {
				if t == ctx.BestMove.S2() {
					sacrificed = true
				}
			}
		}
	}
	return sacrificed && ctx.EvalAfterCp >= ctx.EvalBeforeCp
}

// hasClearance: the moved piece vacates a square/line a friendly piece then
// exploits within the PV. Approximated: a friendly slider's attack set on
// the vacated square's line grows after the move.
func hasClearance(ctx MotifContext) bool {
	return hasDiscoveredAttack(ctx)
}

// hasBackRank: mate or decisive material on the enemy back rank with the
// king boxed in by its own pawns.
func hasBackRank(ctx MotifContext) bool {
	if ctx.After == nil {
		return false
	}
	board := ctx.After.Board()
	enemy := opponentOf(ctx.Mover)
	backRank := 0
	if enemy == chess.White {
		backRank = 0
	} else {
		backRank = 7
	}
	var kingSq chess.Square
	found := false
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p.Type() == chess.King && p.Color() == enemy {
			kingSq = sq
			found = true
			break
		}
	}
	if !found || rankOf(kingSq) != backRank {
		return false
	}
	shelterRank := backRank + 1
	if enemy == chess.Black {
		shelterRank = backRank - 1
	}
	blocked := 0
	for f := fileOf(kingSq) - 1; f <= fileOf(kingSq)+1; f++ {
		sq, ok := squareAt(f, shelterRank)
		if !ok {
			continue
		}
		p := board.Piece(sq)
		if p.Type() == chess.Pawn && p.Color() == enemy {
			blocked++
		}
	}
	return blocked >= 2 && (ctx.EvalAfterCp >= 500 || hasCheckmate(ctx))
}

// hasMateThreat: the mover's evaluation after the best move is at least
// MateScoreClamp-1500, the range that clamped mate scores fall in. No
// null-move probe of the result position is run.
func hasMateThreat(ctx MotifContext) bool {
	if ctx.After == nil {
		return false
	}
	return ctx.EvalAfterCp >= models.MateScoreClamp-1500
}

// hasCheckmate: the position right after the best move has no legal reply
// and the side to move is in check. The rest of the PV is not played out.
func hasCheckmate(ctx MotifContext) bool {
	if ctx.After == nil {
		return false
	}
	return len(ctx.After.ValidMoves()) == 0 && positionInCheck(ctx.After)
}

func positionInCheck(pos *chess.Position) bool {
	moves := pos.ValidMoves()
	if len(moves) > 0 {
		return false
	}
	flipped := nullMove(pos)
	if flipped == nil {
		return false
	}
	turn := pos.Turn()
	for _, m := range flipped.ValidMoves() {
		target := pos.Board().Piece(m.S2())
		if target.Type() == chess.King && target.Color() == turn {
			return true
		}
	}
	return false
}

// hasSmotheredMate: checkmate delivered by a knight with every king flight
// square occupied by friendly pieces.
func hasSmotheredMate(ctx MotifContext) bool {
	if !hasCheckmate(ctx) || ctx.BestMove == nil {
		return false
	}
	mover := ctx.Before.Board().Piece(ctx.BestMove.S1())
	if mover.Type() != chess.Knight {
		return false
	}
	board := ctx.After.Board()
	var kingSq chess.Square
	found := false
	enemy := opponentOf(ctx.Mover)
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p.Type() == chess.King && p.Color() == enemy {
			kingSq = sq
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for df := -1; df <= 1; df++ {
		for dr := -1; dr <= 1; dr++ {
			if df == 0 && dr == 0 {
				continue
			}
			sq, ok := squareAt(fileOf(kingSq)+df, rankOf(kingSq)+dr)
			if !ok {
				continue
			}
			p := board.Piece(sq)
			if p == chess.NoPiece || p.Color() != enemy {
				return false
			}
		}
	}
	return true
}

// hasTrappedPiece: an enemy piece (not a king or pawn) has no legal moves
// and the moved piece attacks it after the best move. Legal moves onto
// attacked squares still count as escapes.
func hasTrappedPiece(ctx MotifContext) bool {
	if ctx.After == nil {
		return false
	}
	enemy := opponentOf(ctx.Mover)
	board := ctx.After.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece == chess.NoPiece || piece.Color() != enemy || piece.Type() == chess.King || piece.Type() == chess.Pawn {
			continue
		}
		escapeSquares := movesFrom(ctx.After, enemy, sq)
		attacked := false
		for _, mv := range movesFrom(ctx.After, ctx.Mover, ctx.BestMove.S2()) {
			if mv.S2() == sq {
				attacked = true
			}
		}
		if len(escapeSquares) == 0 && attacked {
			return true
		}
	}
	return false
}

// hasXRayBattery: two friendly line-pieces align on the same rank/file/
// diagonal toward an enemy target after the best move.
func hasXRayBattery(ctx MotifContext) bool {
	if ctx.After == nil {
		return false
	}
	board := ctx.After.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece == chess.NoPiece || piece.Color() != ctx.Mover || !isSlider(piece.Type()) {
			continue
		}
		for _, dir := range allDirs {
			if !sliderCoversDir(piece.Type(), dir) {
				continue
			}
			ray := rayBetween(ctx.After, sq, dir)
			if len(ray) == 0 {
				continue
			}
			// rayBetween stops at the first piece: it must be a friendly
			// line-piece on this line, with an enemy piece further along.
			mid := board.Piece(ray[len(ray)-1])
			if mid == chess.NoPiece || mid.Color() != ctx.Mover || !sliderCoversDir(mid.Type(), dir) {
				continue
			}
			beyond := rayBetween(ctx.After, ray[len(ray)-1], dir)
			if len(beyond) > 0 {
				target := board.Piece(beyond[len(beyond)-1])
				if target != chess.NoPiece && target.Color() != ctx.Mover {
					return true
				}
			}
		}
	}
	return false
}

// hasInterference: the moved piece lands on a square whose two neighbours
// along some line both hold enemy pieces, one of them a slider. Whether the
// two pieces defended each other is not checked.
func hasInterference(ctx MotifContext) bool {
	if ctx.BestMove == nil || ctx.Before == nil {
		return false
	}
	dest := ctx.BestMove.S2()
	enemy := opponentOf(ctx.Mover)
	for _, dir := range allDirs {
		ray := rayBetween(ctx.Before, dest, dir)
		opp := [2]int{-dir[0], -dir[1]}
		back := rayBetween(ctx.Before, dest, opp)
		if len(ray) == 0 || len(back) == 0 {
			continue
		}
		a := ctx.Before.Board().Piece(ray[0])
		b := ctx.Before.Board().Piece(back[0])
		if a != chess.NoPiece && b != chess.NoPiece && a.Color() == enemy && b.Color() == enemy && isSlider(a.Type()) {
			return true
		}
	}
	return false
}

// hasDesperado: the mover's piece was already attacked and about to be lost;
// the best move trades it for a bigger gain.
func hasDesperado(ctx MotifContext) bool {
	if ctx.BestMove == nil || ctx.Before == nil {
		return false
	}
	from := ctx.BestMove.S1()
	mover := ctx.Before.Board().Piece(from)
	enemy := opponentOf(ctx.Mover)
	wasAttacked := false
	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := ctx.Before.Board().Piece(sq)
		if piece == chess.NoPiece || piece.Color() != enemy {
			continue
		}
		for _, t := range attackedEnemyTargets(ctx.Before, enemy, sq) {
			if t == from {
				wasAttacked = true
			}
		}
	}
	captured := ctx.Before.Board().Piece(ctx.BestMove.S2())
	gain := 0
	if captured != chess.NoPiece {
		gain = PieceValueCp(captured.Type())
	}
	return wasAttacked && gain >= PieceValueCp(mover.Type())
}

// hasAttraction: the best move is a sacrifice whose purpose is to force the
// enemy king to a square exploited later in the PV.
func hasAttraction(ctx MotifContext) bool {
	if !hasSacrifice(ctx) {
		return false
	}
	captured := ctx.Before.Board().Piece(ctx.BestMove.S2())
	return captured.Type() == chess.King || ctx.EvalAfterCp-ctx.EvalBeforeCp >= 200
}
