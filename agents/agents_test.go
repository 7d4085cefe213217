package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridironlabs/huddle/collab"
	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/model"
	"github.com/gridironlabs/huddle/registry"
)

// Interface compliance (compile-time assertions)
var (
	_ core.Agent = (*PredictionAgent)(nil)
	_ core.Agent = (*DataAgent)(nil)
	_ core.Agent = (*InsightAgent)(nil)
)

func analystCtx() core.UserContext {
	return core.UserContext{"user_id": "u1", "role": "analyst"}
}

func loadedPredictor() *model.MockPredictor {
	p := model.NewMockPredictor()
	p.AddModel(ModelGameOutcome, 3, func(features []float64) (float64, float64) {
		return 0.7, 0.8
	})
	p.AddModel(ModelPlayerPoints, 2, func(features []float64) (float64, float64) {
		return 18.5, 0.4
	})
	return p
}

func TestBaseAgent_Gates(t *testing.T) {
	a := NewPredictionAgent("pred-1", loadedPredictor(), map[string]bool{ModelGameOutcome: true})
	ctx := context.Background()

	// unknown action
	_, err := a.Execute(ctx, "teleport", nil, analystCtx())
	assert.True(t, core.IsKind(err, core.KindCapabilityMismatch))

	// unavailable capability (player points model not loaded)
	_, err = a.Execute(ctx, "predict_player_points", map[string]any{"features": []float64{1, 2}}, analystCtx())
	assert.True(t, core.IsKind(err, core.KindAgentUnavailable))

	// caller below required level
	_, err = a.Execute(ctx, "evaluate_model", nil, core.UserContext{"user_id": "u1", "role": "coach"})
	assert.True(t, core.IsKind(err, core.KindPermissionDenied))

	// cancelled context rejected before the handler runs
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = a.Execute(cancelled, "predict_outcome", map[string]any{"features": []float64{1, 2, 3}}, analystCtx())
	require.Error(t, err)
}

func TestPredictionAgent_PredictOutcome(t *testing.T) {
	predictor := loadedPredictor()
	a := NewPredictionAgent("pred-1", predictor, map[string]bool{ModelGameOutcome: true, ModelPlayerPoints: true})

	res, err := a.Execute(context.Background(), "predict_outcome",
		map[string]any{"features": []float64{0.1, 0.2, 0.3}}, analystCtx())
	require.NoError(t, err)

	payload := res.Payload.(map[string]any)
	assert.Equal(t, 0.7, payload["prediction"])
	assert.Equal(t, ModelGameOutcome, payload["model_id"])
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.False(t, res.NeedsReview, "0.8 clears the review threshold")
	assert.Equal(t, 1, predictor.Calls())

	// low confidence flags review
	res, err = a.Execute(context.Background(), "predict_player_points",
		map[string]any{"features": []float64{1, 2}}, analystCtx())
	require.NoError(t, err)
	assert.True(t, res.NeedsReview, "0.4 is below the review threshold")
}

func TestPredictionAgent_FeatureValidation(t *testing.T) {
	a := NewPredictionAgent("pred-1", loadedPredictor(), map[string]bool{ModelGameOutcome: true})

	_, err := a.Execute(context.Background(), "predict_outcome",
		map[string]any{"features": "not a vector"}, analystCtx())
	assert.True(t, core.IsKind(err, core.KindValidation))

	// wrong length is a model-side rejection
	_, err = a.Execute(context.Background(), "predict_outcome",
		map[string]any{"features": []float64{1}}, analystCtx())
	assert.True(t, core.IsKind(err, core.KindAgentUnavailable))

	// []any vectors from decoded JSON are accepted
	_, err = a.Execute(context.Background(), "predict_outcome",
		map[string]any{"features": []any{0.1, 0.2, 0.3}}, analystCtx())
	require.NoError(t, err)
}

func TestPredictionAgent_EvaluateModel(t *testing.T) {
	a := NewPredictionAgent("pred-1", loadedPredictor(), map[string]bool{ModelGameOutcome: true})

	res, err := a.Execute(context.Background(), "evaluate_model", map[string]any{
		"model_id": ModelGameOutcome,
		"batch": []map[string]any{
			{"features": []float64{1, 2, 3}, "label": 1.0},
			{"features": []float64{4, 5, 6}, "label": 0.5},
		},
	}, analystCtx())
	require.NoError(t, err)

	payload := res.Payload.(map[string]any)
	assert.Equal(t, 2, payload["rows"])
	// predictions are fixed at 0.7: errors 0.3 and 0.2, mean 0.25
	assert.InDelta(t, 0.25, payload["mae"].(float64), 1e-9)

	_, err = a.Execute(context.Background(), "evaluate_model", map[string]any{"model_id": ModelGameOutcome}, analystCtx())
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestPredictionAgent_PeerReview(t *testing.T) {
	a := NewPredictionAgent("pred-1", loadedPredictor(), nil)
	ctx := context.Background()

	res, err := a.Execute(ctx, "peer_review", map[string]any{
		"payload": map[string]any{"confidence": 0.9},
	}, analystCtx())
	require.NoError(t, err)
	assert.Equal(t, "approve", res.Payload.(map[string]any)["verdict"])

	res, err = a.Execute(ctx, "peer_review", map[string]any{
		"payload": map[string]any{"confidence": 0.2},
	}, analystCtx())
	require.NoError(t, err)
	assert.Equal(t, "reject", res.Payload.(map[string]any)["verdict"])

	res, err = a.Execute(ctx, "peer_review", map[string]any{"payload": map[string]any{}}, analystCtx())
	require.NoError(t, err)
	assert.Equal(t, "revise", res.Payload.(map[string]any)["verdict"])
}

func TestDataAgent_UnconfiguredClient(t *testing.T) {
	a := NewDataAgent("data-1", nil)
	_, err := a.Execute(context.Background(), "fetch_games", map[string]any{"season": 2025}, analystCtx())
	assert.True(t, core.IsKind(err, core.KindAgentUnavailable))
}

func TestInsightAgent_SummarizeTrends(t *testing.T) {
	a := NewInsightAgent("insight-1", nil, model.NewMockSummarizer())

	res, err := a.Execute(context.Background(), "summarize_trends",
		map[string]any{"text": "red zone efficiency up 12% over four weeks"}, analystCtx())
	require.NoError(t, err)
	assert.Contains(t, res.Payload.(map[string]any)["summary"], "red zone efficiency")

	_, err = a.Execute(context.Background(), "summarize_trends", nil, analystCtx())
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestInsightAgent_PublishInsight(t *testing.T) {
	mgr := collab.NewManager(registry.New())
	a := NewInsightAgent("insight-1", mgr, nil)
	userCtx := core.UserContext{"user_id": "u1", "role": "analyst"}

	res, err := a.Execute(context.Background(), "publish_insight", map[string]any{
		"description": "screen passes beat this blitz scheme",
		"tags":        []any{"passing", "blitz"},
		"confidence":  0.85,
	}, userCtx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Payload.(map[string]any)["item_id"])

	items := mgr.FindByTag("blitz")
	require.Len(t, items, 1)
	assert.Equal(t, "insight-1", items[0].AgentID)

	// tags are mandatory
	_, err = a.Execute(context.Background(), "publish_insight", map[string]any{
		"description": "no tags",
	}, userCtx)
	assert.True(t, core.IsKind(err, core.KindValidation))

	// publish requires write access
	_, err = a.Execute(context.Background(), "publish_insight", map[string]any{
		"description": "coach publish",
		"tags":        []any{"passing"},
	}, core.UserContext{"user_id": "u2", "role": "coach"})
	assert.True(t, core.IsKind(err, core.KindPermissionDenied))
}

func TestInsightAgent_AdminReload(t *testing.T) {
	mgr := collab.NewManager(registry.New())
	a := NewInsightAgent("insight-1", mgr, nil)

	_, err := a.Execute(context.Background(), "admin_reload", nil, core.UserContext{"user_id": "u1", "role": "analyst"})
	assert.True(t, core.IsKind(err, core.KindPermissionDenied))

	res, err := a.Execute(context.Background(), "admin_reload", nil, core.UserContext{"user_id": "root", "role": "admin"})
	require.NoError(t, err)
	assert.Equal(t, true, res.Payload.(map[string]any)["reloaded"])
}

func TestCapabilityEstimates(t *testing.T) {
	a := NewPredictionAgent("pred-1", loadedPredictor(), map[string]bool{ModelGameOutcome: true})
	cap, ok := a.Descriptor().Capability("evaluate_model")
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, cap.EstimatedDuration)
}
