package agents

import (
	"context"
	"errors"
	"time"

	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/sportsdata"
)

// DataAgent answers schedule and statistics queries through the rate-limited
// sports-data client.
type DataAgent struct {
	BaseAgent
	client *sportsdata.Client
}

// NewDataAgent creates a data agent. A nil client flags every fetch
// capability unavailable so the router never offers them.
func NewDataAgent(agentID string, client *sportsdata.Client) *DataAgent {
	available := client != nil
	desc := core.AgentDescriptor{
		AgentID:    agentID,
		AgentType:  "data",
		Name:       "Sports Data Agent",
		Permission: core.PermissionReadExecute,
		Capabilities: []core.Capability{
			{
				Name:               "fetch_games",
				Description:        "Fetch games for a season, optionally filtered by week and team",
				RequiredPermission: core.PermissionReadOnly,
				RequiredResources:  []string{"api:sportsdata"},
				EstimatedDuration:  1500 * time.Millisecond,
				Available:          available,
			},
			{
				Name:               "fetch_team_stats",
				Description:        "Fetch one team's season statistics",
				RequiredPermission: core.PermissionReadOnly,
				RequiredResources:  []string{"api:sportsdata"},
				EstimatedDuration:  1500 * time.Millisecond,
				Available:          available,
			},
		},
	}

	a := &DataAgent{BaseAgent: NewBaseAgent(desc), client: client}
	a.Handle("fetch_games", a.fetchGames)
	a.Handle("fetch_team_stats", a.fetchTeamStats)
	return a
}

func (a *DataAgent) fetchGames(ctx context.Context, params map[string]any, _ core.UserContext) (*core.Result, error) {
	season, err := intParam(params, "season", true)
	if err != nil {
		return nil, err
	}
	week, err := intParam(params, "week", false)
	if err != nil {
		return nil, err
	}
	team, _ := params["team"].(string)

	games, err := a.client.FetchGames(ctx, sportsdata.GamesQuery{Season: season, Week: week, Team: team})
	if err != nil {
		return nil, apiError(err, "fetch_games")
	}
	return &core.Result{Payload: map[string]any{"games": games, "count": len(games)}, Confidence: 1}, nil
}

func (a *DataAgent) fetchTeamStats(ctx context.Context, params map[string]any, _ core.UserContext) (*core.Result, error) {
	season, err := intParam(params, "season", true)
	if err != nil {
		return nil, err
	}
	team, _ := params["team"].(string)
	if team == "" {
		return nil, core.NewError(core.KindValidation, "fetch_team_stats requires team")
	}

	stats, err := a.client.FetchTeamStats(ctx, season, team)
	if err != nil {
		return nil, apiError(err, "fetch_team_stats")
	}
	return &core.Result{Payload: stats, Confidence: 1}, nil
}

// apiError converts the client's typed failures into core kinds: a missing
// resource is the caller's problem, everything else means the upstream is
// unavailable right now.
func apiError(err error, action string) error {
	switch {
	case errors.Is(err, sportsdata.ErrNotFound):
		return core.WrapError(core.KindValidation, err, "%s: no such resource", action)
	case errors.Is(err, sportsdata.ErrRateLimited), errors.Is(err, sportsdata.ErrUnauthorized):
		return core.WrapError(core.KindAgentUnavailable, err, "%s: sports api unavailable", action)
	default:
		return core.WrapError(core.KindInternal, err, "%s", action)
	}
}

func intParam(params map[string]any, key string, required bool) (int, error) {
	v, ok := params[key]
	if !ok {
		if required {
			return 0, core.NewError(core.KindValidation, "missing required parameter %q", key)
		}
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, core.NewError(core.KindValidation, "parameter %q must be an integer, got %T", key, v)
	}
}
