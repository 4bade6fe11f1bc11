package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/chess-arena/analytics-backend/internal/services"
	"github.com/chess-arena/analytics-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// PuzzlesHandler serves puzzle generation kickoff/status/listing and
// single-puzzle lookup.
type PuzzlesHandler struct {
	store        storage.Store
	orchestrator *services.Orchestrator
}

// NewPuzzlesHandler creates a new puzzles handler.
func NewPuzzlesHandler(store storage.Store, orchestrator *services.Orchestrator) *PuzzlesHandler {
	return &PuzzlesHandler{store: store, orchestrator: orchestrator}
}

type generateRequest struct {
	Rated        *bool  `json:"rated"`
	TimeCategory string `json:"timeCategory"`
	MaxGames     int    `json:"maxGames"`
}

// Generate handles POST /users/:username/puzzles/generate. It kicks off the
// full pipeline in the background and returns the current job status
// immediately — per §7, background-job errors never surface on this
// synchronous response, only via the status endpoint.
func (h *PuzzlesHandler) Generate(c *gin.Context) {
	usernameLower := models.NormalizeUsername(c.Param("username"))

	var req generateRequest
	_ = c.ShouldBindJSON(&req)

	go func() {
		_ = h.orchestrator.RunForUser(context.Background(), usernameLower, services.FetchOptions{
			Rated:        req.Rated,
			TimeCategory: req.TimeCategory,
			MaxGames:     req.MaxGames,
		})
	}()

	h.writeStatus(c, usernameLower)
}

// Status handles GET /users/:username/puzzles/status.
func (h *PuzzlesHandler) Status(c *gin.Context) {
	h.writeStatus(c, models.NormalizeUsername(c.Param("username")))
}

func (h *PuzzlesHandler) writeStatus(c *gin.Context, usernameLower string) {
	job, err := h.store.GetJob(usernameLower)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job status"})
		return
	}
	if job == nil {
		job = &models.AnalysisJob{Username: usernameLower, Status: models.JobStatusIdle}
	}

	c.JSON(http.StatusOK, gin.H{
		"analyzing":      job.Analyzing(),
		"status":         job.Status,
		"analyzedGames":  job.AnalyzedGames,
		"totalGames":     job.TotalGames,
		"puzzlesCreated": job.PuzzlesCreated,
		"lastError":      job.LastError,
	})
}

// List handles GET /users/:username/puzzles?limit&offset&rated&timeCategory&category&label.
func (h *PuzzlesHandler) List(c *gin.Context) {
	usernameLower := models.NormalizeUsername(c.Param("username"))
	limit, offset := paginationParams(c)

	puzzles, err := h.store.ListPuzzlesByUser(usernameLower, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list puzzles"})
		return
	}

	filtered := filterPuzzles(puzzles, c.Query("rated"), c.Query("timeCategory"), c.Query("category"), c.Query("label"))

	c.JSON(http.StatusOK, gin.H{
		"puzzles": filtered,
		"total":   len(filtered),
	})
}

func filterPuzzles(puzzles []models.Puzzle, ratedParam, timeCategory, category, label string) []models.Puzzle {
	filtered := make([]models.Puzzle, 0, len(puzzles))
	for _, p := range puzzles {
		if ratedParam != "" {
			wantRated, err := strconv.ParseBool(ratedParam)
			if err == nil && p.Rated != wantRated {
				continue
			}
		}
		if timeCategory != "" && string(p.TimeCategory) != timeCategory {
			continue
		}
		if category != "" && string(p.Category) != category {
			continue
		}
		if label != "" && !hasLabel(p.Labels, label) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

func hasLabel(labels []models.Motif, label string) bool {
	for _, l := range labels {
		if string(l) == label {
			return true
		}
	}
	return false
}

func paginationParams(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// GetByID handles GET /puzzles/:id, resolving the owning game for the
// setup move and player names the full puzzle view needs.
func (h *PuzzlesHandler) GetByID(c *gin.Context) {
	puzzle, err := h.store.GetPuzzleByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load puzzle"})
		return
	}
	if puzzle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "puzzle not found"})
		return
	}

	game, err := h.store.GetGameByID(puzzle.GameID)
	if err != nil || game == nil {
		c.JSON(http.StatusOK, gin.H{"puzzle": puzzle})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"puzzle": puzzle,
		"white":  game.White,
		"black":  game.Black,
	})
}
