package services

import (
	"math"

	"github.com/chess-arena/analytics-backend/internal/models"
)

// RatePoint is one (rating, expected-success-rate) calibration anchor. Rate
// is on the same 0-100 scale as the observed rates passed to ScoreCategory.
// Expected-curve lookup is piecewise-linear between points, clamped at the
// endpoints, with one independent curve per rating category.
type RatePoint struct {
	Rating float64
	Rate   float64
}

// sdExpected is the flat calibration constant the category-score formula
// divides by; it is not a per-point standard deviation.
const sdExpected = 8.0

// defaultCurve is shared by every category until a per-category curve is
// calibrated from real data.
var defaultCurve = []RatePoint{
	{Rating: 800, Rate: 45},
	{Rating: 1200, Rate: 55},
	{Rating: 1600, Rate: 65},
	{Rating: 2000, Rate: 75},
	{Rating: 2400, Rate: 85},
}

// CategoryCurves holds one expected-rate curve per arena category; a nil
// entry falls back to defaultCurve.
type CategoryCurves map[models.Category][]RatePoint

// Tier is the rank bucket derived from the arena rating.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// CategoryScore is one category's observed rate, expected rate and final
// 1-99 score.
type CategoryScore struct {
	Category models.Category
	Observed float64
	Expected float64
	Score    int
}

// ArenaRating is the full six-category card plus headline rating, tier,
// shiny flag and form.
type ArenaRating struct {
	Categories []CategoryScore
	Rating     float64
	Tier       Tier
	Shiny      bool
	Form       int
}

// RatingService computes the six-category arena model: an observed rate
// scored against a piecewise-linear expected-rate curve keyed by rating,
// with clamped endpoints.
type RatingService struct {
	Curves CategoryCurves
}

// NewRatingService builds a rating service. A nil curves map uses
// defaultCurve for every category.
func NewRatingService(curves CategoryCurves) *RatingService {
	return &RatingService{Curves: curves}
}

func (r *RatingService) curveFor(category models.Category) []RatePoint {
	if r.Curves != nil {
		if c, ok := r.Curves[category]; ok && len(c) > 0 {
			return c
		}
	}
	return defaultCurve
}

// expectedRate looks up the piecewise-linear expected success rate for a
// rating on a given category's curve, clamping at the endpoints.
func expectedRate(curve []RatePoint, rating float64) float64 {
	if len(curve) == 0 {
		return 50
	}
	if rating <= curve[0].Rating {
		return curve[0].Rate
	}
	if rating >= curve[len(curve)-1].Rating {
		return curve[len(curve)-1].Rate
	}
	for i := 0; i < len(curve)-1; i++ {
		lo, hi := curve[i], curve[i+1]
		if rating >= lo.Rating && rating <= hi.Rating {
			t := (rating - lo.Rating) / (hi.Rating - lo.Rating)
			return lo.Rate + t*(hi.Rate-lo.Rate)
		}
	}
	return curve[len(curve)-1].Rate
}

// ScoreCategory converts an observed rate (0-100 scale) and a rating into a
// 1-99 category score via score = round(50 + 30·(observed-expected)/sd_expected).
func (r *RatingService) ScoreCategory(category models.Category, observed float64, rating float64) CategoryScore {
	expected := expectedRate(r.curveFor(category), rating)
	raw := 50.0 + 30.0*(observed-expected)/sdExpected
	score := int(math.Round(raw))
	if score < 1 {
		score = 1
	}
	if score > 99 {
		score = 99
	}
	return CategoryScore{Category: category, Observed: observed, Expected: expected, Score: score}
}

// ObservedRates is the compact per-category observed-rate summary the
// caller derives from accuracy/puzzle data before scoring, each on a 0-100
// scale matching the curve points' Rate field.
type ObservedRates struct {
	Attacking float64
	Defending float64
	Tactics   float64
	Strategic float64
	Opening   float64
	Endgame   float64
}

// tierFor derives the tier from the headline arena rating.
func tierFor(rating float64) Tier {
	switch {
	case rating < 60:
		return TierBronze
	case rating < 75:
		return TierSilver
	case rating < 90:
		return TierGold
	default:
		return TierPlatinum
	}
}

// Compute builds the full arena card: six category scores, the unweighted
// headline rating, tier, shiny flag and form.
func (r *RatingService) Compute(rates ObservedRates, rating float64, recentResults []int) ArenaRating {
	categories := []CategoryScore{
		r.ScoreCategory(models.CategoryAttacking, rates.Attacking, rating),
		r.ScoreCategory(models.CategoryDefending, rates.Defending, rating),
		r.ScoreCategory(models.CategoryTactics, rates.Tactics, rating),
		r.ScoreCategory(models.CategoryStrategic, rates.Strategic, rating),
		r.ScoreCategory(models.CategoryOpening, rates.Opening, rating),
		r.ScoreCategory(models.CategoryEndgame, rates.Endgame, rating),
	}

	var sum float64
	shiny := false
	for _, c := range categories {
		sum += float64(c.Score)
		if c.Score >= 95 {
			shiny = true
		}
	}
	headline := sum / float64(len(categories))

	return ArenaRating{
		Categories: categories,
		Rating:     headline,
		Tier:       tierFor(headline),
		Shiny:      shiny,
		Form:       Form(recentResults),
	}
}

// Form sums ±1 per win/loss (0 for draws) across the last 10 results,
// clipped to ±10. results[i] is +1 for a win, -1 for a loss, 0 for a draw,
// most-recent-first; only the first 10 entries count.
func Form(results []int) int {
	n := len(results)
	if n > 10 {
		n = 10
	}
	sum := 0
	for i := 0; i < n; i++ {
		switch {
		case results[i] > 0:
			sum++
		case results[i] < 0:
			sum--
		}
	}
	if sum > 10 {
		sum = 10
	}
	if sum < -10 {
		sum = -10
	}
	return sum
}
