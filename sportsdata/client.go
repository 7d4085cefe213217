// Package sportsdata wraps the external sports-data API behind a client
// that enforces the provider's minimum delay between calls and converts
// HTTP failures into distinct error kinds instead of raw transport errors.
package sportsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gridironlabs/huddle/logging"
	"golang.org/x/time/rate"
)

// Sentinel errors for the status codes the core branches on. Use errors.Is.
var (
	ErrRateLimited  = errors.New("sports api: rate limited")
	ErrUnauthorized = errors.New("sports api: unauthorized")
	ErrNotFound     = errors.New("sports api: not found")
)

// APIError carries the HTTP status of a failed call and wraps the matching
// sentinel when one applies.
type APIError struct {
	StatusCode int
	Message    string
	sentinel   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("sports api: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *APIError) Unwrap() error { return e.sentinel }

func newAPIError(status int, msg string) *APIError {
	e := &APIError{StatusCode: status, Message: msg}
	switch status {
	case http.StatusTooManyRequests:
		e.sentinel = ErrRateLimited
	case http.StatusUnauthorized:
		e.sentinel = ErrUnauthorized
	case http.StatusNotFound:
		e.sentinel = ErrNotFound
	}
	return e
}

// Game is one scheduled or completed game.
type Game struct {
	Season    int       `json:"season"`
	Week      int       `json:"week"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Kickoff   time.Time `json:"kickoff"`
	Final     bool      `json:"final"`
}

// TeamStats aggregates one team's season statistics.
type TeamStats struct {
	Season        int     `json:"season"`
	Team          string  `json:"team"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	PointsFor     float64 `json:"points_for"`
	PointsAgainst float64 `json:"points_against"`
}

// GamesQuery filters FetchGames. Week and Team are optional.
type GamesQuery struct {
	Season int
	Week   int
	Team   string
}

// Options configures a Client.
type Options struct {
	// MinDelay is the provider-mandated minimum delay between calls.
	// Default 1s.
	MinDelay time.Duration
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Client is the rate-limited sports-data API client. All calls pass through
// a shared limiter so concurrent callers still respect the provider delay.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{MinDelay: time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(opts.MinDelay), 1),
		logger:     logging.OrNoOp(opts.Logger),
	}
}

// FetchGames returns the games matching the query.
func (c *Client) FetchGames(ctx context.Context, q GamesQuery) ([]Game, error) {
	params := url.Values{"season": {strconv.Itoa(q.Season)}}
	if q.Week > 0 {
		params.Set("week", strconv.Itoa(q.Week))
	}
	if q.Team != "" {
		params.Set("team", q.Team)
	}
	var games []Game
	if err := c.get(ctx, "/games", params, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// FetchTeamStats returns one team's season statistics.
func (c *Client) FetchTeamStats(ctx context.Context, season int, team string) (*TeamStats, error) {
	params := url.Values{"season": {strconv.Itoa(season)}, "team": {team}}
	var stats TeamStats
	if err := c.get(ctx, "/team-stats", params, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sports api: waiting for rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("sports api: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sports api: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("sports api call", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sports api: decoding response: %w", err)
	}
	return nil
}
