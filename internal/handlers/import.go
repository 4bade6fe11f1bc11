package handlers

import (
	"net/http"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/chess-arena/analytics-backend/internal/services"
	"github.com/chess-arena/analytics-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// ImportHandler synchronously imports and parses a user's games from one
// external source.
type ImportHandler struct {
	store    storage.Store
	source   services.GamesSource
	parser   *services.ChessService
	maxGames int
}

// NewImportHandler creates a new import handler.
func NewImportHandler(store storage.Store, source services.GamesSource, parser *services.ChessService, maxGames int) *ImportHandler {
	return &ImportHandler{store: store, source: source, parser: parser, maxGames: maxGames}
}

type importRequest struct {
	Username     string `json:"username" binding:"required"`
	Rated        *bool  `json:"rated"`
	TimeCategory string `json:"timeCategory"`
	MaxGames     int    `json:"maxGames"`
}

// Import handles POST /import/:source.
func (h *ImportHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	usernameLower := models.NormalizeUsername(req.Username)
	maxGames := req.MaxGames
	if maxGames <= 0 {
		maxGames = h.maxGames
	}

	if err := h.store.UpsertUser(models.User{Username: usernameLower}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	raw, err := h.source.FetchGames(c.Request.Context(), usernameLower, services.FetchOptions{
		Rated:        req.Rated,
		TimeCategory: req.TimeCategory,
		MaxGames:     maxGames,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch games: " + err.Error()})
		return
	}

	imported, parsed := 0, 0
	for _, rg := range raw {
		if existing, err := h.store.GetGameByExternalID(usernameLower, rg.ExternalID); err == nil && existing != nil {
			continue
		}
		game := models.Game{
			ID:           storage.NewID(),
			Username:     usernameLower,
			ExternalID:   rg.ExternalID,
			PGN:          rg.PGN,
			White:        rg.White,
			Black:        rg.Black,
			WhiteElo:     rg.WhiteElo,
			BlackElo:     rg.BlackElo,
			TimeControl:  rg.TimeControl,
			TimeCategory: models.ClassifyTimeCategory(rg.TimeControl),
			Rated:        rg.Rated,
			EndDate:      rg.EndTime,
			Result:       services.ResultFor(rg, usernameLower),
		}
		if err := h.store.UpsertGame(game); err != nil {
			continue
		}
		imported++

		positions, err := h.parser.ParseGame(game.ID, game.PGN)
		if err != nil {
			continue
		}
		for _, pos := range positions {
			_ = h.store.UpsertPosition(pos)
		}
		parsed++
	}

	c.JSON(http.StatusOK, gin.H{
		"username": usernameLower,
		"fetched":  len(raw),
		"imported": imported,
		"parsed":   parsed,
	})
}
