package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/chess-arena/analytics-backend/internal/services"
	"github.com/chess-arena/analytics-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// ArenaHandler serves the six-category arena card and the hypothetical
// target-rating comparison.
type ArenaHandler struct {
	store      storage.Store
	classifier *services.ClassifierService
	accuracy   *services.AccuracyService
	rating     *services.RatingService
}

// NewArenaHandler creates a new arena handler.
func NewArenaHandler(store storage.Store, classifier *services.ClassifierService, accuracy *services.AccuracyService, rating *services.RatingService) *ArenaHandler {
	return &ArenaHandler{store: store, classifier: classifier, accuracy: accuracy, rating: rating}
}

// ArenaStats handles GET /users/:username/arena-stats?timeCategory&chessRating&rated&title.
func (h *ArenaHandler) ArenaStats(c *gin.Context) {
	usernameLower := models.NormalizeUsername(c.Param("username"))

	games, err := h.userGames(usernameLower, c.Query("timeCategory"), c.Query("rated"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load games"})
		return
	}
	if len(games) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no games found for user"})
		return
	}

	chessRating, _ := strconv.ParseFloat(c.Query("chessRating"), 64)
	if chessRating <= 0 {
		chessRating = 1200
	}

	rates := services.ComputeObservedRates(h.classifier, h.accuracy, games)
	recentResults := h.recentResultsFor(games)
	card := h.rating.Compute(rates, chessRating, recentResults)

	c.JSON(http.StatusOK, gin.H{
		"username":   usernameLower,
		"categories": card.Categories,
		"rating":     card.Rating,
		"tier":       card.Tier,
		"shiny":      card.Shiny,
		"form":       card.Form,
	})
}

// TargetStats handles GET /target-stats?targetRating&timeCategory — the
// hypothetical expected category rates at a target rating, with no user in
// scope. Each entry's Expected field is the curve's rate; its Observed and
// Score reflect an observed rate of 0. No phase accuracies are returned, and
// timeCategory is echoed back without affecting the result.
func (h *ArenaHandler) TargetStats(c *gin.Context) {
	targetRating, _ := strconv.ParseFloat(c.Query("targetRating"), 64)
	if targetRating <= 0 {
		targetRating = 1200
	}

	categories := []models.Category{
		models.CategoryAttacking,
		models.CategoryDefending,
		models.CategoryTactics,
		models.CategoryStrategic,
		models.CategoryOpening,
		models.CategoryEndgame,
	}
	expected := make(map[models.Category]services.CategoryScore, len(categories))
	for _, category := range categories {
		expected[category] = h.rating.ScoreCategory(category, 0, targetRating)
	}

	c.JSON(http.StatusOK, gin.H{
		"targetRating": targetRating,
		"timeCategory": c.Query("timeCategory"),
		"expected":     expected,
	})
}

func (h *ArenaHandler) userGames(usernameLower, timeCategory, ratedParam string) ([]services.GamePositions, error) {
	games, err := h.store.ListGamesByUser(usernameLower)
	if err != nil {
		return nil, err
	}

	var result []services.GamePositions
	for _, game := range games {
		if timeCategory != "" && string(game.TimeCategory) != timeCategory {
			continue
		}
		if ratedParam != "" {
			wantRated, err := strconv.ParseBool(ratedParam)
			if err == nil && game.Rated != wantRated {
				continue
			}
		}

		positions, err := h.store.ListPositions(game.ID)
		if err != nil || len(positions) == 0 {
			continue
		}
		result = append(result, services.GamePositions{GameID: game.ID, UserSide: game.UserColor(), Positions: positions})
	}
	return result, nil
}

// recentResultsFor maps the same rated/timeCategory-filtered game set used
// for the observed-rate computation to ±1/0 results for RatingService.Form,
// so "recent form" stays scoped to the request's own filters rather than
// the user's entire game history. Results are ordered newest game first.
func (h *ArenaHandler) recentResultsFor(games []services.GamePositions) []int {
	type datedResult struct {
		end    time.Time
		result int
	}
	dated := make([]datedResult, 0, len(games))
	for _, g := range games {
		game, err := h.store.GetGameByID(g.GameID)
		if err != nil || game == nil {
			continue
		}
		switch game.Result {
		case models.ResultWin:
			dated = append(dated, datedResult{game.EndDate, 1})
		case models.ResultLoss:
			dated = append(dated, datedResult{game.EndDate, -1})
		default:
			dated = append(dated, datedResult{game.EndDate, 0})
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].end.After(dated[j].end) })
	results := make([]int, len(dated))
	for i, d := range dated {
		results[i] = d.result
	}
	return results
}
