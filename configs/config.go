package configs

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Engine    EngineConfig
	Pipeline  PipelineConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Mode string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type EngineConfig struct {
	BinaryPath     string
	MaxWorkers     int
	ScreeningDepth int
	ReviewDepth    int
	Threads        int
	HashSizeMB     int
	KillGrace      time.Duration
}

// PipelineConfig holds orchestration-stage tunables: how many games an
// import pulls per run. PollInterval is loaded but no pipeline code reads it.
type PipelineConfig struct {
	MaxGamesPerImport int
	PollInterval      time.Duration
}

type StorageConfig struct {
	Path string
}

type RateLimitConfig struct {
	ImportPerHour         int
	PuzzleGeneratePerHour int
	StatsLookupsPerHour   int
	EvalLookupsPerHour    int
}

func Load() *Config {
	viper.SetDefault("APP_MODE", "debug")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "30s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	viper.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")

	viper.SetDefault("ENGINE_BINARY_PATH", "stockfish")
	viper.SetDefault("ENGINE_MAX_WORKERS", 3)
	viper.SetDefault("ENGINE_SCREENING_DEPTH", 12)
	viper.SetDefault("ENGINE_REVIEW_DEPTH", 18)
	viper.SetDefault("ENGINE_THREADS", 1)
	viper.SetDefault("ENGINE_HASH_SIZE_MB", 128)
	viper.SetDefault("ENGINE_KILL_GRACE", "2s")

	viper.SetDefault("PIPELINE_MAX_GAMES_PER_IMPORT", 50)
	viper.SetDefault("PIPELINE_POLL_INTERVAL", "5s")

	viper.SetDefault("STORAGE_PATH", "./data/badger")

	viper.SetDefault("RATE_LIMIT_IMPORT_PER_HOUR", 20)
	viper.SetDefault("RATE_LIMIT_PUZZLE_GENERATE_PER_HOUR", 60)
	viper.SetDefault("RATE_LIMIT_STATS_LOOKUPS_PER_HOUR", 100000)
	viper.SetDefault("RATE_LIMIT_EVAL_LOOKUPS_PER_HOUR", 200000)

	viper.AutomaticEnv()

	readTimeout, _ := time.ParseDuration(viper.GetString("SERVER_READ_TIMEOUT"))
	writeTimeout, _ := time.ParseDuration(viper.GetString("SERVER_WRITE_TIMEOUT"))
	shutdownTimeout, _ := time.ParseDuration(viper.GetString("SERVER_SHUTDOWN_TIMEOUT"))
	killGrace, _ := time.ParseDuration(viper.GetString("ENGINE_KILL_GRACE"))
	pollInterval, _ := time.ParseDuration(viper.GetString("PIPELINE_POLL_INTERVAL"))

	return &Config{
		App: AppConfig{
			Mode: viper.GetString("APP_MODE"),
		},
		Server: ServerConfig{
			Port:            viper.GetInt("SERVER_PORT"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		Engine: EngineConfig{
			BinaryPath:     viper.GetString("ENGINE_BINARY_PATH"),
			MaxWorkers:     viper.GetInt("ENGINE_MAX_WORKERS"),
			ScreeningDepth: viper.GetInt("ENGINE_SCREENING_DEPTH"),
			ReviewDepth:    viper.GetInt("ENGINE_REVIEW_DEPTH"),
			Threads:        viper.GetInt("ENGINE_THREADS"),
			HashSizeMB:     viper.GetInt("ENGINE_HASH_SIZE_MB"),
			KillGrace:      killGrace,
		},
		Pipeline: PipelineConfig{
			MaxGamesPerImport: viper.GetInt("PIPELINE_MAX_GAMES_PER_IMPORT"),
			PollInterval:      pollInterval,
		},
		Storage: StorageConfig{
			Path: viper.GetString("STORAGE_PATH"),
		},
		RateLimit: RateLimitConfig{
			ImportPerHour:         viper.GetInt("RATE_LIMIT_IMPORT_PER_HOUR"),
			PuzzleGeneratePerHour: viper.GetInt("RATE_LIMIT_PUZZLE_GENERATE_PER_HOUR"),
			StatsLookupsPerHour:   viper.GetInt("RATE_LIMIT_STATS_LOOKUPS_PER_HOUR"),
			EvalLookupsPerHour:    viper.GetInt("RATE_LIMIT_EVAL_LOOKUPS_PER_HOUR"),
		},
	}
}
