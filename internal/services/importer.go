package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chess-arena/analytics-backend/internal/models"
)

// RawGame is one fetched game, ready to hand to the position parser. Fields
// mirror the subset of a source API's payload the parser actually needs.
type RawGame struct {
	ExternalID  string
	PGN         string
	White       string
	Black       string
	WhiteElo    int
	BlackElo    int
	Result      string
	TimeControl string
	Rated       bool
	EndTime     time.Time
}

// FetchOptions narrows and bounds a games fetch.
type FetchOptions struct {
	Rated        *bool
	TimeCategory string
	MaxGames     int
}

// GamesSource is the orchestrator's Import stage collaborator; a concrete
// implementation adapts one external provider's API shape to RawGame.
type GamesSource interface {
	FetchGames(ctx context.Context, username string, opts FetchOptions) ([]RawGame, error)
}

const (
	apiRequestDelay = 200 * time.Millisecond
	apiRetryDelay   = 2 * time.Second
)

// HTTPGamesSource fetches games from an external HTTP archive API (the
// Lichess/Chess.com games-export shape), deduping on externalID before
// rows ever reach the parser.
//
// Grounded on the pack's TreeChess EngineService.fetchExplorer: a bounded
// http.Client, an in-memory response cache, and a single 429 backoff-retry.
type HTTPGamesSource struct {
	BaseURL    string
	httpClient *http.Client

	cacheMu sync.Mutex
	cache   map[string][]byte
}

// NewHTTPGamesSource builds a source pointed at baseURL (e.g. a Lichess-
// shaped "https://lichess.org/api/games/user" endpoint).
func NewHTTPGamesSource(baseURL string) *HTTPGamesSource {
	return &HTTPGamesSource{
		BaseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache: make(map[string][]byte),
	}
}

func (s *HTTPGamesSource) fetch(ctx context.Context, requestURL string) ([]byte, error) {
	s.cacheMu.Lock()
	if cached, ok := s.cache[requestURL]; ok {
		s.cacheMu.Unlock()
		return cached, nil
	}
	s.cacheMu.Unlock()

	time.Sleep(apiRequestDelay)

	body, status, err := s.do(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		time.Sleep(apiRetryDelay)
		body, status, err = s.do(ctx, requestURL)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("games source returned status %d", status)
	}

	s.cacheMu.Lock()
	s.cache[requestURL] = body
	s.cacheMu.Unlock()
	return body, nil
}

func (s *HTTPGamesSource) do(ctx context.Context, requestURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("games source request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// rawGameRecord is the provider's one-game-per-line JSON shape.
type rawGameRecord struct {
	ID      string `json:"id"`
	PGN     string `json:"pgn"`
	Rated   bool   `json:"rated"`
	Speed   string `json:"speed"`
	Clock   struct {
		Initial   int `json:"initial"`
		Increment int `json:"increment"`
	} `json:"clock"`
	Players struct {
		White struct {
			User struct {
				Name string `json:"name"`
			} `json:"user"`
			Rating int `json:"rating"`
		} `json:"white"`
		Black struct {
			User struct {
				Name string `json:"name"`
			} `json:"user"`
			Rating int `json:"rating"`
		} `json:"black"`
	} `json:"players"`
	Winner     string `json:"winner"`
	CreatedAt  int64  `json:"createdAt"`
	LastMoveAt int64  `json:"lastMoveAt"`
}

// FetchGames retrieves up to opts.MaxGames games for username, deduping on
// externalID and filtering by opts.Rated/opts.TimeCategory before returning.
func (s *HTTPGamesSource) FetchGames(ctx context.Context, username string, opts FetchOptions) ([]RawGame, error) {
	q := url.Values{}
	q.Set("max", fmt.Sprintf("%d", maxGamesOrDefault(opts.MaxGames)))
	q.Set("pgnInJson", "true")
	if opts.Rated != nil {
		q.Set("rated", fmt.Sprintf("%t", *opts.Rated))
	}
	requestURL := fmt.Sprintf("%s/%s?%s", strings.TrimRight(s.BaseURL, "/"), url.PathEscape(username), q.Encode())

	body, err := s.fetch(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	var records []rawGameRecord
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec rawGameRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}

	seen := make(map[string]bool, len(records))
	games := make([]RawGame, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		timeControl := fmt.Sprintf("%d+%d", rec.Clock.Initial, rec.Clock.Increment)
		timeCategory := string(models.ClassifyTimeCategory(timeControl))
		if opts.TimeCategory != "" && opts.TimeCategory != timeCategory {
			continue
		}

		games = append(games, RawGame{
			ExternalID:  rec.ID,
			PGN:         rec.PGN,
			White:       rec.Players.White.User.Name,
			Black:       rec.Players.Black.User.Name,
			WhiteElo:    rec.Players.White.Rating,
			BlackElo:    rec.Players.Black.Rating,
			Result:      rec.Winner,
			TimeControl: timeControl,
			Rated:       rec.Rated,
			EndTime:     time.UnixMilli(rec.LastMoveAt),
		})
	}
	return games, nil
}

func maxGamesOrDefault(maxGames int) int {
	if maxGames <= 0 {
		return 50
	}
	return maxGames
}
