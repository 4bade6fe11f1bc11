package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chess-arena/analytics-backend/configs"
	"github.com/chess-arena/analytics-backend/internal/handlers"
	"github.com/chess-arena/analytics-backend/internal/middleware"
	"github.com/chess-arena/analytics-backend/internal/services"
	"github.com/chess-arena/analytics-backend/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := configs.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logrus.Fatalf("failed to open storage: %v", err)
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
	classifierService := services.NewClassifierService(evaluator.Probe)
	puzzleGenerator := services.NewPuzzleGenerator(evaluator, evaluator.Probe)
	ratingService := services.NewRatingService(nil)
	gamesSource := services.NewHTTPGamesSource("https://lichess.org/api/games/user")
	orchestrator := services.NewOrchestrator(store, gamesSource, chessService, evaluator, accuracyService, puzzleGenerator, ratingService)

	if cfg.App.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:3001"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.RateLimit(cfg.RateLimit))

	healthHandler := handlers.NewHealthHandler()
	importHandler := handlers.NewImportHandler(store, gamesSource, chessService, cfg.Pipeline.MaxGamesPerImport)
	puzzlesHandler := handlers.NewPuzzlesHandler(store, orchestrator)
	classifyHandler := handlers.NewClassifyHandler(classifierService)
	statsHandler := handlers.NewStatsHandler(store, accuracyService)
	arenaHandler := handlers.NewArenaHandler(store, classifierService, accuracyService, ratingService)
	evalHandler := handlers.NewEvalHandler(evaluator)

	router.GET("/api/health", healthHandler.Health)
	router.GET("/api/stats", healthHandler.Stats)

	router.POST("/import/:source", importHandler.Import)
	router.POST("/classify-test", classifyHandler.ClassifyTest)
	router.GET("/eval", evalHandler.Eval)
	router.GET("/target-stats", arenaHandler.TargetStats)
	router.GET("/puzzles/:id", puzzlesHandler.GetByID)

	users := router.Group("/users/:username")
	{
		users.POST("/puzzles/generate", puzzlesHandler.Generate)
		users.GET("/puzzles/status", puzzlesHandler.Status)
		users.GET("/puzzles", puzzlesHandler.List)
		users.GET("/stats", statsHandler.Stats)
		users.GET("/games", statsHandler.Games)
		users.GET("/arena-stats", arenaHandler.ArenaStats)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logrus.Infof("chess arena analytics backend listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("server forced to shutdown: %v", err)
	}
}
