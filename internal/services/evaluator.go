package services

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chess-arena/analytics-backend/internal/models"
	"github.com/chess-arena/analytics-backend/pkg/uci"

	"github.com/notnil/chess"
	"github.com/sirupsen/logrus"
)

// EvaluatorService owns a small pool of long-lived engine processes, one per
// worker, and drains the unevaluated-position queue across them. Evaluation
// runs at a cheaper screening depth first, with a deeper review-depth pass
// reserved for puzzle confirmation, and a position is flagged failed after
// three consecutive engine errors.
type EvaluatorService struct {
	engines        []*uci.Engine
	available      chan *uci.Engine
	binaryPath     string
	maxWorkers     int
	screeningDepth int
	reviewDepth    int
	threads        int
	hashSizeMB     int
	killGrace      time.Duration
	mutex          sync.RWMutex
}

// NewEvaluatorService builds (but does not start) an evaluator pool. A
// threads or hashSizeMB of 0 falls back to autoDetectEngineResources's
// CPU/memory-based defaults.
func NewEvaluatorService(binaryPath string, maxWorkers, screeningDepth, reviewDepth, threads, hashSizeMB int, killGrace time.Duration) *EvaluatorService {
	if threads <= 0 || hashSizeMB <= 0 {
		autoThreads, autoHash := autoDetectEngineResources()
		if threads <= 0 {
			threads = autoThreads
		}
		if hashSizeMB <= 0 {
			hashSizeMB = autoHash
		}
	}
	return &EvaluatorService{
		available:      make(chan *uci.Engine, maxWorkers),
		binaryPath:     binaryPath,
		maxWorkers:     maxWorkers,
		screeningDepth: screeningDepth,
		reviewDepth:    reviewDepth,
		threads:        threads,
		hashSizeMB:     hashSizeMB,
		killGrace:      killGrace,
	}
}

// autoDetectEngineResources picks a conservative per-engine thread count and
// hash size from the host's CPU count and reported memory, used when the
// config doesn't pin explicit values.
func autoDetectEngineResources() (threads, hashMB int) {
	cpus := runtime.NumCPU() - 2
	if cpus < 1 {
		cpus = 1
	}
	if cpus > 32 {
		cpus = 32
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	totalMemMB := int(memStats.Sys / 1024 / 1024)
	hash := totalMemMB / 4
	if hash < 64 {
		hash = 64
	}
	if hash > 4096 {
		hash = 4096
	}
	return cpus, hash
}

// Start launches one engine process per worker and configures it per the
// pool's Threads/Hash settings.
func (e *EvaluatorService) Start() error {
	for i := 0; i < e.maxWorkers; i++ {
		engine, err := uci.NewEngine(e.binaryPath)
		if err != nil {
			return fmt.Errorf("start engine %d: %w", i, err)
		}
		if err := engine.Initialize(); err != nil {
			return fmt.Errorf("initialize engine %d: %w", i, err)
		}
		if err := engine.SetOption("Threads", fmt.Sprintf("%d", e.threads)); err != nil {
			logrus.Debugf("engine %d: could not set Threads: %v", i, err)
		}
		if err := engine.SetOption("Hash", fmt.Sprintf("%d", e.hashSizeMB)); err != nil {
			logrus.Debugf("engine %d: could not set Hash: %v", i, err)
		}
		e.engines = append(e.engines, engine)
		e.available <- engine
	}
	logrus.Infof("evaluator pool started with %d engines", len(e.engines))
	return nil
}

// Shutdown quits every engine, killing any that doesn't exit within the
// configured grace period.
func (e *EvaluatorService) Shutdown() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	for _, engine := range e.engines {
		if err := engine.QuitOrKill(e.killGrace); err != nil {
			logrus.Errorf("engine shutdown: %v", err)
		}
	}
	e.engines = nil
}

func (e *EvaluatorService) acquire() (*uci.Engine, error) {
	select {
	case engine := <-e.available:
		return engine, nil
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("timeout waiting for available engine")
	}
}

func (e *EvaluatorService) release(engine *uci.Engine) {
	if err := engine.NewGame(); err != nil {
		logrus.Errorf("reset engine between positions: %v", err)
	}
	select {
	case e.available <- engine:
	default:
		logrus.Warn("evaluator pool full on return, dropping engine reference")
	}
}

// analyze runs a single search at the given depth, returning a clamped
// centipawn score, the best move and PV.
func (e *EvaluatorService) analyze(fen string, depth int) (bestMoveUci string, evalCp int, pv []string, err error) {
	engine, err := e.acquire()
	if err != nil {
		return "", 0, nil, err
	}
	defer e.release(engine)

	if err := engine.SetPosition(fen, nil); err != nil {
		return "", 0, nil, fmt.Errorf("set position: %w", err)
	}
	result, err := engine.Search(depth, 0, 1)
	if err != nil {
		return "", 0, nil, fmt.Errorf("search: %w", err)
	}
	return result.BestMove, result.EvalCp(), result.PrincipalVariation, nil
}

// EvaluateScreening evaluates one position at the screening depth, applying
// §4.2's 3-strikes failure flagging: a Position that fails three times in a
// row is marked eval_failed and skipped by downstream stages, without
// aborting the enclosing game.
func (e *EvaluatorService) EvaluateScreening(pos *models.Position) {
	bestMoveUci, evalCp, pv, err := e.analyze(pos.FEN, e.screeningDepth)
	if err != nil {
		pos.FailCount++
		logrus.WithFields(logrus.Fields{"gameId": pos.GameID, "ply": pos.Ply, "failCount": pos.FailCount}).
			Warnf("screening evaluation failed: %v", err)
		if pos.FailCount >= 3 {
			pos.EvalFailed = true
		}
		return
	}
	depth := e.screeningDepth
	// The engine scores from the side to move; stored evals are White-relative.
	if pos.SideToMove == models.SideBlack {
		evalCp = -evalCp
	}
	pos.Eval = &evalCp
	pos.EvalDepth = &depth
	pos.PV = pv
	pos.MoveUCI = firstNonEmpty(pos.MoveUCI, bestMoveUci)
	pos.FailCount = 0
	pos.EvalFailed = false
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Review implements the ReviewEvaluator interface the puzzle generator
// depends on: a single review-depth search used to re-confirm mistake
// candidates.
func (e *EvaluatorService) Review(fen string) (bestMoveUci string, evalCp int, pv []string, ok bool) {
	bestMoveUci, evalCp, pv, err := e.analyze(fen, e.reviewDepth)
	if err != nil {
		logrus.Warnf("review evaluation failed: %v", err)
		return "", 0, nil, false
	}
	return bestMoveUci, evalCp, pv, true
}

// Probe implements NullMoveProber: a quick screening-depth search used by
// the classifier's defending/attacking cascade steps.
func (e *EvaluatorService) Probe(pos *chess.Position) (int, bool) {
	if pos == nil {
		return 0, false
	}
	_, evalCp, _, err := e.analyze(pos.String(), e.screeningDepth)
	if err != nil {
		return 0, false
	}
	return evalCp, true
}
