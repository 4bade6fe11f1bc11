package services

import (
	"fmt"
	"strings"

	"github.com/chess-arena/analytics-backend/internal/models"

	"github.com/notnil/chess"
	"github.com/sirupsen/logrus"
)

// ChessService parses PGN move records into ply-ordered Position rows and
// classifies positions by phase and material, grounded on the same
// notnil/chess board-walking primitives used by the motif detectors.
type ChessService struct{}

// NewChessService creates a new chess service.
func NewChessService() *ChessService {
	return &ChessService{}
}

// majorMinorValues assigns a "major+minor" weight to the pieces the endgame
// threshold counts; pawns and kings are excluded.
var majorMinorValues = map[chess.PieceType]int{
	chess.Queen:  1,
	chess.Rook:   1,
	chess.Bishop: 1,
	chess.Knight: 1,
}

// ParseGame replays a PGN move record and returns one Position per ply, FEN
// captured before the move is played. Returns an error (and leaves the
// caller responsible for leaving positionsParsed=false) if the PGN fails to
// parse — other games in the same import batch must still proceed.
func (s *ChessService) ParseGame(gameID, pgnStr string) ([]models.Position, error) {
	pgnFunc, err := chess.PGN(strings.NewReader(pgnStr))
	if err != nil {
		return nil, fmt.Errorf("parse PGN: %w", err)
	}

	replay := chess.NewGame(pgnFunc)
	moves := replay.Moves()
	if len(moves) == 0 {
		return nil, fmt.Errorf("game has no moves")
	}

	walker := chess.NewGame()
	positions := make([]models.Position, 0, len(moves))

	for i, move := range moves {
		ply := i + 1
		beforeFEN := walker.Position().String()
		side := models.SideWhite
		if i%2 == 1 {
			side = models.SideBlack
		}

		uci := moveToUCI(move)
		san := move.String()

		if err := walker.Move(move); err != nil {
			logrus.WithFields(logrus.Fields{"gameId": gameID, "ply": ply}).
				Errorf("failed to replay move: %v", err)
			return nil, fmt.Errorf("replay move %d: %w", ply, err)
		}

		positions = append(positions, models.Position{
			GameID:     gameID,
			Ply:        ply,
			FEN:        beforeFEN,
			MoveUCI:    uci,
			SAN:        san,
			SideToMove: side,
		})
	}

	return positions, nil
}

func moveToUCI(move *chess.Move) string {
	uci := move.S1().String() + move.S2().String()
	switch move.Promo() {
	case chess.Queen:
		uci += "q"
	case chess.Rook:
		uci += "r"
	case chess.Bishop:
		uci += "b"
	case chess.Knight:
		uci += "n"
	}
	return uci
}

// ValidateFEN validates a FEN string.
func (s *ChessService) ValidateFEN(fen string) error {
	_, err := chess.FEN(fen)
	if err != nil {
		return fmt.Errorf("invalid FEN: %w", err)
	}
	return nil
}

// PositionFromFEN builds a *chess.Position from a FEN string.
func PositionFromFEN(fen string) (*chess.Position, error) {
	fenFunc, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN: %w", err)
	}
	return chess.NewGame(fenFunc).Position(), nil
}

// CountMajorMinorPieces counts queens, rooks, bishops and knights across both
// colors — the figure the endgame phase threshold (§4.3) is keyed on.
func CountMajorMinorPieces(position *chess.Position) int {
	count := 0
	board := position.Board()
	for square := chess.A1; square <= chess.H8; square++ {
		piece := board.Piece(square)
		if _, ok := majorMinorValues[piece.Type()]; ok {
			count++
		}
	}
	return count
}

// Phase classifies a position by ply and remaining material:
//   - opening: ply <= 24
//   - endgame: not opening and fewer than 7 major+minor pieces remain
//   - middlegame: otherwise
func Phase(ply int, position *chess.Position) models.GamePhase {
	if ply <= 24 {
		return models.PhaseOpening
	}
	if CountMajorMinorPieces(position) < 7 {
		return models.PhaseEndgame
	}
	return models.PhaseMiddlegame
}

// FullmovePly derives the 1-based ply number from a FEN's fullmove counter
// and side to move, used where a position arrives without ply context (e.g.
// the /classify-test endpoint).
func FullmovePly(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1
	}
	var fullmove int
	if _, err := fmt.Sscanf(fields[5], "%d", &fullmove); err != nil || fullmove < 1 {
		fullmove = 1
	}
	ply := (fullmove - 1) * 2
	if fields[1] == "w" {
		ply++
	} else {
		ply += 2
	}
	return ply
}

// PieceValueCp returns the standard centipawn value of a piece type, used by
// several motif detectors (fork, pin/skewer, sacrifice, desperado) to compare
// material gain/loss.
func PieceValueCp(pt chess.PieceType) int {
	switch pt {
	case chess.Pawn:
		return 100
	case chess.Knight:
		return 320
	case chess.Bishop:
		return 330
	case chess.Rook:
		return 500
	case chess.Queen:
		return 900
	default:
		return 0
	}
}
