package handlers

import (
	"net/http"
	"strconv"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/chess-arena/analytics-backend/internal/services"
	"github.com/chess-arena/analytics-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// StatsHandler serves win/loss/draw summaries, per-color accuracy and the
// plain game list for a user.
type StatsHandler struct {
	store    storage.Store
	accuracy *services.AccuracyService
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store storage.Store, accuracy *services.AccuracyService) *StatsHandler {
	return &StatsHandler{store: store, accuracy: accuracy}
}

// Stats handles GET /users/:username/stats?timeCategory&rated&limit.
func (h *StatsHandler) Stats(c *gin.Context) {
	usernameLower := models.NormalizeUsername(c.Param("username"))
	user, err := h.store.GetUser(usernameLower)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	games, err := h.filteredGames(c, usernameLower)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load games"})
		return
	}

	wins, losses, draws := 0, 0, 0
	var whiteRecords, blackRecords []services.MoveRecord

	for _, game := range games {
		switch game.Result {
		case models.ResultWin:
			wins++
		case models.ResultLoss:
			losses++
		case models.ResultDraw:
			draws++
		}

		positions, err := h.store.ListPositions(game.ID)
		if err != nil || len(positions) == 0 {
			continue
		}
		userSide := game.UserColor()
		records := h.accuracy.BuildMoveRecords(game.ID, userSide, positions)
		if userSide == models.SideWhite {
			whiteRecords = append(whiteRecords, records...)
		} else {
			blackRecords = append(blackRecords, records...)
		}
	}

	total := wins + losses + draws
	c.JSON(http.StatusOK, gin.H{
		"username":      usernameLower,
		"totalGames":    total,
		"wins":          wins,
		"losses":        losses,
		"draws":         draws,
		"winRate":       rateOf(wins, total),
		"lossRate":      rateOf(losses, total),
		"drawRate":      rateOf(draws, total),
		"whiteAccuracy": gameWeightedAccuracy(h.accuracy, whiteRecords),
		"blackAccuracy": gameWeightedAccuracy(h.accuracy, blackRecords),
	})
}

// Games handles GET /users/:username/games?timeCategory&rated&limit.
func (h *StatsHandler) Games(c *gin.Context) {
	usernameLower := models.NormalizeUsername(c.Param("username"))
	games, err := h.filteredGames(c, usernameLower)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load games"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games, "total": len(games)})
}

func (h *StatsHandler) filteredGames(c *gin.Context, usernameLower string) ([]models.Game, error) {
	games, err := h.store.ListGamesByUser(usernameLower)
	if err != nil {
		return nil, err
	}

	timeCategory := c.Query("timeCategory")
	ratedParam := c.Query("rated")
	limit := 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	filtered := make([]models.Game, 0, len(games))
	for _, g := range games {
		if timeCategory != "" && string(g.TimeCategory) != timeCategory {
			continue
		}
		if ratedParam != "" {
			wantRated, err := strconv.ParseBool(ratedParam)
			if err == nil && g.Rated != wantRated {
				continue
			}
		}
		filtered = append(filtered, g)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func rateOf(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

// gameWeightedAccuracy groups moves back by game, applies the §4.3
// winsorize-then-harmonic-mean-per-game rule, then arithmetic-means across
// games — the same aggregation PhaseAccuracy uses, without the phase filter.
func gameWeightedAccuracy(accuracy *services.AccuracyService, records []services.MoveRecord) float64 {
	byGame := map[string][]float64{}
	var order []string
	for _, r := range records {
		if _, seen := byGame[r.GameID]; !seen {
			order = append(order, r.GameID)
		}
		byGame[r.GameID] = append(byGame[r.GameID], r.Accuracy)
	}
	if len(order) == 0 {
		return 0
	}
	var sum float64
	for _, gameID := range order {
		sum += accuracy.GameAccuracy(byGame[gameID])
	}
	return sum / float64(len(order))
}
