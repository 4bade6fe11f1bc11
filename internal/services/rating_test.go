package services

import (
	"testing"

	"github.com/chess-arena/analytics-backend/internal/models"
)

func TestScoreCategoryAtExpectedGivesFifty(t *testing.T) {
	svc := NewRatingService(nil)
	got := svc.ScoreCategory(models.CategoryTactics, 65, 1600)
	if got.Score != 50 {
		t.Errorf("expected score 50 when observed == expected, got %d", got.Score)
	}
}

func TestScoreCategoryClampsToBounds(t *testing.T) {
	svc := NewRatingService(nil)
	high := svc.ScoreCategory(models.CategoryTactics, 100, 800)
	if high.Score != 99 {
		t.Errorf("expected clamp to 99, got %d", high.Score)
	}
	low := svc.ScoreCategory(models.CategoryTactics, 0, 2400)
	if low.Score != 1 {
		t.Errorf("expected clamp to 1, got %d", low.Score)
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		rating float64
		want   Tier
	}{
		{59, TierBronze},
		{60, TierSilver},
		{74, TierSilver},
		{75, TierGold},
		{89, TierGold},
		{90, TierPlatinum},
	}
	for _, tc := range cases {
		if got := tierFor(tc.rating); got != tc.want {
			t.Errorf("tierFor(%.0f) = %s, want %s", tc.rating, got, tc.want)
		}
	}
}

func TestFormClipsToTenGamesAndBounds(t *testing.T) {
	allWins := make([]int, 15)
	for i := range allWins {
		allWins[i] = 1
	}
	if got := Form(allWins); got != 10 {
		t.Errorf("expected form clipped at 10 over 15 wins, got %d", got)
	}

	mixed := []int{1, 1, -1, 0, 1}
	if got := Form(mixed); got != 2 {
		t.Errorf("expected form 2, got %d", got)
	}
}
