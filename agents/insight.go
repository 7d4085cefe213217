package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gridironlabs/huddle/collab"
	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/model"
)

// InsightAgent turns raw analytics into narrative trends and publishes
// durable findings to the collaboration knowledge store.
type InsightAgent struct {
	BaseAgent
	manager    *collab.Manager
	summarizer model.Summarizer
}

// NewInsightAgent creates an insight agent. The summarizer is optional;
// without one, summarize_trends falls back to a heuristic rendering.
func NewInsightAgent(agentID string, manager *collab.Manager, summarizer model.Summarizer) *InsightAgent {
	desc := core.AgentDescriptor{
		AgentID:    agentID,
		AgentType:  "insight",
		Name:       "Insight Agent",
		Permission: core.PermissionAdmin,
		Capabilities: []core.Capability{
			{
				Name:               "summarize_trends",
				Description:        "Summarize a batch of statistics into narrative trends",
				RequiredPermission: core.PermissionReadExecute,
				EstimatedDuration:  time.Second,
				Available:          true,
			},
			{
				Name:               "publish_insight",
				Description:        "Publish a finding to the shared knowledge store",
				RequiredPermission: core.PermissionReadExecuteWrite,
				EstimatedDuration:  100 * time.Millisecond,
				Available:          manager != nil,
			},
			{
				Name:               "admin_reload",
				Description:        "Reload knowledge from the persistent store",
				RequiredPermission: core.PermissionAdmin,
				EstimatedDuration:  time.Second,
				Available:          manager != nil,
			},
			{
				Name:               "peer_review",
				Description:        "Review another agent's output for coherence",
				RequiredPermission: core.PermissionReadExecute,
				EstimatedDuration:  100 * time.Millisecond,
				Available:          true,
			},
		},
	}

	a := &InsightAgent{BaseAgent: NewBaseAgent(desc), manager: manager, summarizer: summarizer}
	a.Handle("summarize_trends", a.summarizeTrends)
	a.Handle("publish_insight", a.publishInsight)
	a.Handle("admin_reload", a.adminReload)
	a.Handle("peer_review", a.peerReview)
	return a
}

func (a *InsightAgent) summarizeTrends(ctx context.Context, params map[string]any, _ core.UserContext) (*core.Result, error) {
	text, _ := params["text"].(string)
	if text == "" {
		return nil, core.NewError(core.KindValidation, "summarize_trends requires text")
	}
	if a.summarizer != nil {
		if digest, err := a.summarizer.Summarize(ctx, text); err == nil {
			return &core.Result{Payload: map[string]any{"summary": digest}, Confidence: 0.9}, nil
		}
		// Summarizer failure degrades to the heuristic path below.
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > 3 {
		lines = lines[:3]
	}
	return &core.Result{
		Payload:    map[string]any{"summary": strings.Join(lines, " ")},
		Confidence: 0.5,
	}, nil
}

func (a *InsightAgent) publishInsight(ctx context.Context, params map[string]any, _ core.UserContext) (*core.Result, error) {
	description, _ := params["description"].(string)
	if description == "" {
		return nil, core.NewError(core.KindValidation, "publish_insight requires description")
	}
	tags, err := stringSlice(params["tags"])
	if err != nil || len(tags) == 0 {
		return nil, core.NewError(core.KindValidation, "publish_insight requires at least one tag")
	}
	confidence, err := toFloat(params["confidence"])
	if err != nil {
		confidence = 0.5
	}
	supersedes, _ := params["supersedes"].(string)
	itemType, _ := params["type"].(string)
	if itemType == "" {
		itemType = "insight"
	}

	item, err := a.manager.PublishKnowledge(ctx, collab.KnowledgeItem{
		AgentID:     a.Descriptor().AgentID,
		Type:        itemType,
		Description: description,
		Confidence:  confidence,
		Tags:        tags,
		Supersedes:  supersedes,
	})
	if err != nil {
		return nil, err
	}
	return &core.Result{Payload: map[string]any{"item_id": item.ID}, Confidence: 1}, nil
}

func (a *InsightAgent) adminReload(ctx context.Context, _ map[string]any, _ core.UserContext) (*core.Result, error) {
	if err := a.manager.LoadPersisted(ctx); err != nil {
		return nil, core.WrapError(core.KindInternal, err, "admin_reload")
	}
	return &core.Result{Payload: map[string]any{"reloaded": true}, Confidence: 1}, nil
}

// peerReview approves any payload that renders to non-empty content.
func (a *InsightAgent) peerReview(_ context.Context, params map[string]any, _ core.UserContext) (*core.Result, error) {
	if payload := params["payload"]; payload != nil && fmt.Sprint(payload) != "" {
		return &core.Result{Payload: map[string]any{"verdict": "approve"}}, nil
	}
	return &core.Result{Payload: map[string]any{"verdict": "reject", "notes": "empty payload"}}, nil
}

func stringSlice(v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, len(s))
		for i, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want string", i, e)
			}
			out[i] = str
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", v)
	}
}
