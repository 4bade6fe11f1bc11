// Command orchestrator runs the Import -> Parse -> Evaluate -> Accuracy ->
// Puzzle pipeline for one or more users outside the HTTP server, for cron or
// batch-job deployment. Exit codes: 0 all users processed without error, 1
// fatal configuration/storage error or any user's pipeline returned an
// error, 2 engine unavailable at startup.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/chess-arena/analytics-backend/configs"
	"github.com/chess-arena/analytics-backend/internal/services"
	"github.com/chess-arena/analytics-backend/internal/storage"

	"github.com/sirupsen/logrus"
)

func main() {
	usernames := flag.String("users", "", "comma-separated usernames to analyze")
	rated := flag.Bool("rated", false, "restrict import to rated games")
	timeCategory := flag.String("time-category", "", "restrict import to a time category (bullet, blitz, rapid)")
	flag.Parse()

	logrus.SetFormatter(&logrus.JSONFormatter{})

	if strings.TrimSpace(*usernames) == "" {
		logrus.Error("no users given via -users")
		os.Exit(1)
	}

	cfg := configs.Load()

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logrus.Errorf("failed to open storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	evaluator := services.NewEvaluatorService(
		cfg.Engine.BinaryPath,
		cfg.Engine.MaxWorkers,
		cfg.Engine.ScreeningDepth,
		cfg.Engine.ReviewDepth,
		cfg.Engine.Threads,
		cfg.Engine.HashSizeMB,
		cfg.Engine.KillGrace,
	)
	if err := evaluator.Start(); err != nil {
		logrus.Errorf("engine unavailable at startup: %v", err)
		os.Exit(2)
	}
	defer evaluator.Shutdown()

	chessService := services.NewChessService()
	accuracyService := services.NewAccuracyService()
	puzzleGenerator := services.NewPuzzleGenerator(evaluator, evaluator.Probe)
	ratingService := services.NewRatingService(nil)
	gamesSource := services.NewHTTPGamesSource("https://lichess.org/api/games/user")
	orchestrator := services.NewOrchestrator(store, gamesSource, chessService, evaluator, accuracyService, puzzleGenerator, ratingService)

	var ratedFilter *bool
	if *rated {
		ratedFilter = rated
	}
	opts := services.FetchOptions{
		Rated:        ratedFilter,
		TimeCategory: *timeCategory,
		MaxGames:     cfg.Pipeline.MaxGamesPerImport,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	failed := false
	for _, raw := range strings.Split(*usernames, ",") {
		username := strings.TrimSpace(raw)
		if username == "" {
			continue
		}
		logrus.WithField("username", username).Info("running pipeline")
		if err := orchestrator.RunForUser(ctx, username, opts); err != nil {
			logrus.WithField("username", username).WithError(err).Error("pipeline failed")
			failed = true
			continue
		}
		logrus.WithField("username", username).Info("pipeline finished")
	}

	if failed {
		os.Exit(1)
	}
}
