package handlers

import (
	"net/http"

	"github.com/chess-arena/analytics-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// EvalHandler serves single-position evaluation lookups for the analysis UI.
type EvalHandler struct {
	evaluator *services.EvaluatorService
}

// NewEvalHandler creates a new eval handler.
func NewEvalHandler(evaluator *services.EvaluatorService) *EvalHandler {
	return &EvalHandler{evaluator: evaluator}
}

// Eval handles GET /eval?fen=...
func (h *EvalHandler) Eval(c *gin.Context) {
	fen := c.Query("fen")
	if fen == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fen query parameter is required"})
		return
	}

	bestMoveUci, evalCp, pv, ok := h.evaluator.Review(fen)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine evaluation unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fen":         fen,
		"bestMoveUci": bestMoveUci,
		"evalCp":      evalCp,
		"pv":          pv,
	})
}
