package models

// Category is the closed set of skill categories a puzzle or per-move
// classification can carry.
type Category string

const (
	CategoryOpening   Category = "opening"
	CategoryDefending Category = "defending"
	CategoryAttacking Category = "attacking"
	CategoryTactics   Category = "tactics"
	CategoryEndgame   Category = "endgame"
	CategoryStrategic Category = "strategic"
)

// Severity grades how costly a mistake was.
type Severity string

const (
	SeverityMistake    Severity = "mistake"
	SeverityBlunder    Severity = "blunder"
	SeverityMissedWin  Severity = "missed_win"
	SeverityMissedSave Severity = "missed_save"
)

// Motif is a tactical or positional label a puzzle can carry. The universe
// is fixed; detectors never invent new tags.
type Motif string

const (
	MotifFork              Motif = "fork"
	MotifPin               Motif = "pin"
	MotifSkewer            Motif = "skewer"
	MotifDiscoveredAttack  Motif = "discovered_attack"
	MotifDoubleAttack      Motif = "double_attack"
	MotifRemovalOfDefender Motif = "removal_of_defender"
	MotifOverload          Motif = "overload"
	MotifDeflection        Motif = "deflection"
	MotifIntermezzo        Motif = "intermezzo"
	MotifSacrifice         Motif = "sacrifice"
	MotifClearance         Motif = "clearance"
	MotifBackRank          Motif = "back_rank"
	MotifMateThreat        Motif = "mate_threat"
	MotifCheckmate         Motif = "checkmate"
	MotifSmotheredMate     Motif = "smothered_mate"
	MotifTrappedPiece      Motif = "trapped_piece"
	MotifXRayBattery       Motif = "x_ray"
	MotifInterference      Motif = "interference"
	MotifDesperado         Motif = "desperado"
	MotifAttraction        Motif = "attraction"
)

// MateSignalMotifs are the motifs whose presence short-circuits the category
// cascade straight to "tactics" regardless of phase (§4.5 step 1).
var MateSignalMotifs = map[Motif]bool{
	MotifCheckmate:     true,
	MotifSmotheredMate: true,
	MotifMateThreat:    true,
	MotifBackRank:      true,
}

// RemainingTacticalMotifs are the motifs evaluated at cascade step 4.
var RemainingTacticalMotifs = map[Motif]bool{
	MotifFork:              true,
	MotifPin:               true,
	MotifSkewer:            true,
	MotifDoubleAttack:      true,
	MotifDiscoveredAttack:  true,
	MotifRemovalOfDefender: true,
	MotifDeflection:        true,
	MotifIntermezzo:        true,
	MotifSacrifice:         true,
	MotifClearance:         true,
	MotifTrappedPiece:      true,
	MotifXRayBattery:       true,
	MotifInterference:      true,
	MotifDesperado:         true,
	MotifAttraction:        true,
}

// PVDependentMotifs require a principal variation of at least 3 plies;
// implementations must treat them as absent otherwise (§9 Open Question i).
var PVDependentMotifs = map[Motif]bool{
	MotifDeflection: true,
	MotifIntermezzo: true,
	MotifAttraction: true,
	MotifClearance:  true,
}

// Puzzle is one materialized mistake from a user's game, annotated with a
// tactical motif label set and a single skill category.
type Puzzle struct {
	ID                string       `json:"id"`
	GameID            string       `json:"gameId"`
	Ply               int          `json:"ply"`
	FEN               string       `json:"fen"`
	SideToMove        Side         `json:"sideToMove"`
	PlayedMoveUCI     string       `json:"playedMoveUci"`
	BestMoveUCI       string       `json:"bestMoveUci"`
	PVMoves           []string     `json:"pvMoves"`
	EvalBeforeCp      int          `json:"evalBeforeCp"`
	EvalAfterCp       int          `json:"evalAfterCp"`
	DeltaCp           int          `json:"deltaCp"`
	RequiredMoves     int          `json:"requiredMoves"`
	SetupFEN          string       `json:"setupFen,omitempty"`
	SetupMoveUCI      string       `json:"setupMoveUci,omitempty"`
	Category          Category     `json:"category"`
	Severity          Severity     `json:"severity"`
	Labels            []Motif      `json:"labels"`
	Rated             bool         `json:"rated"`
	TimeCategory      TimeCategory `json:"timeCategory"`
	CreatedAtUnixNano int64        `json:"createdAt"`
}

// RequiredMovesFor computes the ⌈|pvMoves|/2⌉ user-move count for a puzzle.
func RequiredMovesFor(pvMoves []string) int {
	if len(pvMoves) == 0 {
		return 0
	}
	return (len(pvMoves) + 1) / 2
}
