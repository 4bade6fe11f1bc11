package handlers

import (
	"net/http"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/chess-arena/analytics-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// ClassifyHandler serves the classify-test endpoint: no persistence, just
// the motif table and priority cascade over the body's own fields. The
// classifier's null-move prober, when it has one, is the only engine use.
type ClassifyHandler struct {
	classifier *services.ClassifierService
}

// NewClassifyHandler creates a new classify handler. A classifier built
// with a nil prober skips the defending/attacking cascade steps.
func NewClassifyHandler(classifier *services.ClassifierService) *ClassifyHandler {
	return &ClassifyHandler{classifier: classifier}
}

type classifyTestRequest struct {
	FEN           string   `json:"fen" binding:"required"`
	SideToMove    string   `json:"sideToMove"`
	PlayedMoveUCI string   `json:"playedMoveUci"`
	BestMoveUCI   string   `json:"bestMoveUci"`
	PVMoves       []string `json:"pvMoves"`
	EvalBeforeCp  int      `json:"evalBeforeCp"`
	EvalAfterCp   int      `json:"evalAfterCp"`
}

// ClassifyTest handles POST /classify-test.
func (h *ClassifyHandler) ClassifyTest(c *gin.Context) {
	var req classifyTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	side := models.SideWhite
	if req.SideToMove == string(models.SideBlack) {
		side = models.SideBlack
	}

	result, err := h.classifier.ClassifyPuzzleFields(services.ClassifyPuzzleFieldsInput{
		FEN:           req.FEN,
		SideToMove:    services.ColorForSide(side),
		PlayedMoveUCI: req.PlayedMoveUCI,
		BestMoveUCI:   req.BestMoveUCI,
		PVMoves:       req.PVMoves,
		EvalBeforeCp:  req.EvalBeforeCp,
		EvalAfterCp:   req.EvalAfterCp,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": result.Category,
		"severity": severityForReview(req.EvalBeforeCp, req.EvalAfterCp),
		"labels":   result.Labels,
	})
}

// severityForReview exposes the generator's severity cascade to the
// classify-test surface, which receives before/after evals directly rather
// than a Position pair.
func severityForReview(evalBeforeCp, evalAfterCp int) models.Severity {
	delta := evalAfterCp - evalBeforeCp
	return services.SeverityFor(evalBeforeCp, evalAfterCp, delta)
}
