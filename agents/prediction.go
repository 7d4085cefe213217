package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/model"
)

// Model identifiers the prediction agent serves.
const (
	ModelGameOutcome  = "game_outcome"
	ModelPlayerPoints = "player_points"
)

// reviewThreshold: predictions below this confidence ask for peer review.
const reviewThreshold = 0.55

// PredictionAgent serves model predictions over the prediction collaborator.
// A model that failed to load disables only the capability that depends on
// it; the agent itself stays registered and serves its other capabilities.
type PredictionAgent struct {
	BaseAgent
	predictor model.Predictor
}

// NewPredictionAgent creates a prediction agent. loaded reports which model
// identifiers are actually servable; a missing entry flags the matching
// capability unavailable.
func NewPredictionAgent(agentID string, predictor model.Predictor, loaded map[string]bool) *PredictionAgent {
	desc := core.AgentDescriptor{
		AgentID:    agentID,
		AgentType:  "prediction",
		Name:       "Prediction Agent",
		Permission: core.PermissionReadExecuteWrite,
		Capabilities: []core.Capability{
			{
				Name:               "predict_outcome",
				Description:        "Predict the probability the home team wins a game",
				RequiredPermission: core.PermissionReadExecute,
				RequiredResources:  []string{"model:" + ModelGameOutcome},
				EstimatedDuration:  200 * time.Millisecond,
				Available:          loaded[ModelGameOutcome],
			},
			{
				Name:               "predict_player_points",
				Description:        "Predict a player's fantasy points for a week",
				RequiredPermission: core.PermissionReadExecute,
				RequiredResources:  []string{"model:" + ModelPlayerPoints},
				EstimatedDuration:  200 * time.Millisecond,
				Available:          loaded[ModelPlayerPoints],
			},
			{
				Name:               "evaluate_model",
				Description:        "Score a model against a labeled feature batch",
				RequiredPermission: core.PermissionReadExecuteWrite,
				EstimatedDuration:  2 * time.Second,
				Available:          true,
			},
			{
				Name:               "peer_review",
				Description:        "Review another agent's prediction for plausibility",
				RequiredPermission: core.PermissionReadExecute,
				EstimatedDuration:  100 * time.Millisecond,
				Available:          true,
			},
		},
	}

	a := &PredictionAgent{BaseAgent: NewBaseAgent(desc), predictor: predictor}
	a.Handle("predict_outcome", a.predictWith(ModelGameOutcome))
	a.Handle("predict_player_points", a.predictWith(ModelPlayerPoints))
	a.Handle("evaluate_model", a.evaluateModel)
	a.Handle("peer_review", a.peerReview)
	return a
}

func (a *PredictionAgent) predictWith(modelID string) Handler {
	return func(ctx context.Context, params map[string]any, _ core.UserContext) (*core.Result, error) {
		features, err := floatSlice(params["features"])
		if err != nil {
			return nil, core.WrapError(core.KindValidation, err, "predict %s", modelID)
		}
		pred, err := a.predictor.Predict(ctx, modelID, features)
		if err != nil {
			return nil, core.WrapError(core.KindAgentUnavailable, err, "model %s", modelID)
		}
		confidence := pred.Confidence
		if !pred.HasConfidence {
			confidence = 0
		}
		return &core.Result{
			Payload: map[string]any{
				"model_id":   pred.ModelID,
				"prediction": pred.Value,
				"confidence": confidence,
			},
			Confidence:  confidence,
			NeedsReview: pred.HasConfidence && confidence < reviewThreshold,
		}, nil
	}
}

// evaluateModel scores a model over a batch of labeled feature vectors,
// returning mean absolute error.
func (a *PredictionAgent) evaluateModel(ctx context.Context, params map[string]any, _ core.UserContext) (*core.Result, error) {
	modelID, _ := params["model_id"].(string)
	if modelID == "" {
		return nil, core.NewError(core.KindValidation, "evaluate_model requires model_id")
	}
	batch, ok := params["batch"].([]map[string]any)
	if !ok || len(batch) == 0 {
		return nil, core.NewError(core.KindValidation, "evaluate_model requires a non-empty batch")
	}

	var totalErr float64
	for i, row := range batch {
		features, err := floatSlice(row["features"])
		if err != nil {
			return nil, core.WrapError(core.KindValidation, err, "batch row %d", i)
		}
		label, err := toFloat(row["label"])
		if err != nil {
			return nil, core.WrapError(core.KindValidation, err, "batch row %d label", i)
		}
		pred, err := a.predictor.Predict(ctx, modelID, features)
		if err != nil {
			return nil, core.WrapError(core.KindAgentUnavailable, err, "model %s", modelID)
		}
		diff := pred.Value - label
		if diff < 0 {
			diff = -diff
		}
		totalErr += diff
	}
	return &core.Result{
		Payload: map[string]any{
			"model_id": modelID,
			"rows":     len(batch),
			"mae":      totalErr / float64(len(batch)),
		},
		Confidence: 1,
	}, nil
}

// peerReview approves payloads whose reported confidence clears the review
// threshold and rejects the rest.
func (a *PredictionAgent) peerReview(_ context.Context, params map[string]any, _ core.UserContext) (*core.Result, error) {
	payload, _ := params["payload"].(map[string]any)
	confidence, err := toFloat(payload["confidence"])
	if err != nil {
		return &core.Result{Payload: map[string]any{"verdict": "revise", "notes": "payload carries no confidence"}}, nil
	}
	if confidence >= reviewThreshold {
		return &core.Result{Payload: map[string]any{"verdict": "approve"}}, nil
	}
	return &core.Result{Payload: map[string]any{
		"verdict": "reject",
		"notes":   fmt.Sprintf("confidence %.2f below %.2f", confidence, reviewThreshold),
	}}, nil
}

func floatSlice(v any) ([]float64, error) {
	switch s := v.(type) {
	case []float64:
		return s, nil
	case []any:
		out := make([]float64, len(s))
		for i, e := range s {
			f, err := toFloat(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("features must be a numeric vector, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
