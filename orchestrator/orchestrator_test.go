package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridironlabs/huddle/contextopt"
	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/internal/testutil"
	"github.com/gridironlabs/huddle/memory"
	"github.com/gridironlabs/huddle/registry"
	"github.com/gridironlabs/huddle/router"
)

func orchestratorOver(t *testing.T, reg *registry.Registry, optFns ...func(o *Options)) *Orchestrator {
	t.Helper()
	return New(router.New(reg), optFns...)
}

func registryWith(t *testing.T, agents ...*testutil.StubAgent) *registry.Registry {
	t.Helper()
	reg := registry.New()
	byType := make(map[string][]*testutil.StubAgent)
	for _, a := range agents {
		byType[a.Desc.AgentType] = append(byType[a.Desc.AgentType], a)
	}
	for agentType, group := range byType {
		group := group
		i := 0
		require.NoError(t, reg.Register(agentType, func(string) (core.Agent, error) {
			a := group[i]
			i++
			return a, nil
		}))
		for _, a := range group {
			_, err := reg.Create(agentType, a.Desc.AgentID)
			require.NoError(t, err)
		}
	}
	return reg
}

func TestSubmit_SingleAction(t *testing.T) {
	agent := testutil.NewStubAgent(
		testutil.NewDescriptor("pred-1").Type("prediction").
			Capability("predict_outcome", core.PermissionReadExecute).Build(),
		map[string]any{"winner": "chiefs"},
	)
	o := orchestratorOver(t, registryWith(t, agent))

	resp := o.Submit(context.Background(), testutil.RequestAs("predict_outcome", "u1", core.PermissionReadExecute, nil))
	require.True(t, resp.Success, "error: %s", resp.Error)
	assert.Empty(t, resp.FailedSubtasks)
	assert.Equal(t, "pred-1", resp.AgentID)
	assert.Equal(t, map[string]any{"winner": "chiefs"}, resp.Result)
	assert.EqualValues(t, 1, agent.Calls())
}

// The recorded turn carries the context the request actually saw: its token
// spend, a fingerprint of the enhanced context, and the caller's own query
// text rather than the bare action name.
func TestSubmit_TurnRecordsContextAndTokens(t *testing.T) {
	agent := testutil.NewStubAgent(
		testutil.NewDescriptor("pred-1").Type("prediction").
			Capability("predict_outcome", core.PermissionReadExecute).Build(),
		"prediction",
	)
	mem := memory.New()
	opt := contextopt.New()
	bundle := contextopt.Bundle{Resources: []contextopt.Resource{
		{Name: "team-stats-card", FocusArea: "team_stats", Content: "third down conversion rates by opponent"},
	}}
	o := orchestratorOver(t, registryWith(t, agent), func(o *Options) {
		o.Memory = mem
		o.Optimizer = opt
		o.ContextBundle = bundle
	})

	resp := o.Submit(context.Background(), testutil.RequestAs("predict_outcome", "u1", core.PermissionReadExecute,
		map[string]any{"query": "how do the chiefs look on third down"}))
	require.True(t, resp.Success, "error: %s", resp.Error)

	turns := mem.RecentTurns("u1")
	require.Len(t, turns, 1)
	assert.Equal(t, "how do the chiefs look on third down", turns[0].Query)
	assert.NotZero(t, turns[0].Tokens, "turn must record the context token spend")
	assert.NotEmpty(t, turns[0].ContextUsed, "turn must record which context was used")

	resp = o.Submit(context.Background(), testutil.RequestAs("predict_outcome", "u1", core.PermissionReadExecute, nil))
	require.True(t, resp.Success)
	turns = mem.RecentTurns("u1")
	require.Len(t, turns, 2)
	assert.Equal(t, "predict_outcome", turns[1].Query, "no query text falls back to the action")
}

func TestSubmit_InvalidRequest(t *testing.T) {
	o := orchestratorOver(t, registryWith(t))
	resp := o.Submit(context.Background(), &core.AgentRequest{})
	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.FailedSubtasks)
	assert.Equal(t, core.KindValidation, resp.FailedSubtasks[0].Kind)
}

// A caller below the capability's required level gets a PermissionDenied
// response and the agent is never invoked.
func TestSubmit_PermissionDeniedBeforeInvocation(t *testing.T) {
	agent := testutil.NewStubAgent(
		testutil.NewDescriptor("pred-1").Type("prediction").
			Permission(core.PermissionAdmin).
			Capability("evaluate_model", core.PermissionAdmin).Build(),
		"never seen",
	)
	o := orchestratorOver(t, registryWith(t, agent))

	resp := o.Submit(context.Background(), testutil.RequestAs("evaluate_model", "u1", core.PermissionReadExecute, nil))
	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.FailedSubtasks)
	assert.Equal(t, core.KindPermissionDenied, resp.FailedSubtasks[0].Kind)
	assert.EqualValues(t, 0, agent.Calls(), "denied caller must never reach the agent")
}

// Two independent sub-tasks: one succeeds quickly, one hangs past the
// invocation timeout. The response is a partial success with exactly one
// enumerated failure.
func TestSubmit_PartialTimeout(t *testing.T) {
	fast := testutil.NewStubAgent(
		testutil.NewDescriptor("fast-1").Type("data").
			Capability("fetch_games", core.PermissionReadOnly).Build(),
		nil,
	)
	fast.Fn = func(context.Context, string, map[string]any, core.UserContext) (*core.Result, error) {
		time.Sleep(50 * time.Millisecond)
		return &core.Result{Payload: "games"}, nil
	}
	hang := testutil.NewStubAgent(
		testutil.NewDescriptor("hang-1").Type("prediction").
			Capability("predict_outcome", core.PermissionReadExecute).Build(),
		nil,
	)
	hang.Fn = func(context.Context, string, map[string]any, core.UserContext) (*core.Result, error) {
		// ignores cancellation on purpose
		time.Sleep(2 * time.Second)
		return &core.Result{Payload: "late"}, nil
	}

	o := orchestratorOver(t, registryWith(t, fast, hang), func(o *Options) {
		o.InvocationTimeout = 200 * time.Millisecond
	})

	req := testutil.RequestAs("analyze", "u1", core.PermissionReadExecute, map[string]any{
		"subtasks": []any{
			map[string]any{"name": "games", "action": "fetch_games"},
			map[string]any{"name": "outcome", "action": "predict_outcome"},
		},
	})
	started := time.Now()
	resp := o.Submit(context.Background(), req)

	assert.True(t, resp.Success, "partial success stays successful")
	require.Len(t, resp.FailedSubtasks, 1)
	assert.Equal(t, core.KindTimeout, resp.FailedSubtasks[0].Kind)
	assert.Equal(t, "predict_outcome", resp.FailedSubtasks[0].Action)

	payload, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "games", payload["games"])

	// the hanging agent was abandoned, not waited out
	assert.Less(t, time.Since(started), time.Second)
}

func TestSubmit_AllSubtasksFail(t *testing.T) {
	o := orchestratorOver(t, registryWith(t))
	resp := o.Submit(context.Background(), testutil.Request("predict_outcome", "u1", nil))
	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.FailedSubtasks)
	assert.Equal(t, core.KindCapabilityMismatch, resp.FailedSubtasks[0].Kind)
}

func TestSubmit_DependencyOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var handedOff any

	fetch := testutil.NewStubAgent(
		testutil.NewDescriptor("data-1").Type("data").
			Capability("fetch_games", core.PermissionReadOnly).Build(),
		nil,
	)
	fetch.Fn = func(context.Context, string, map[string]any, core.UserContext) (*core.Result, error) {
		mu.Lock()
		order = append(order, "fetch")
		mu.Unlock()
		return &core.Result{Payload: "game list"}, nil
	}
	predict := testutil.NewStubAgent(
		testutil.NewDescriptor("pred-1").Type("prediction").
			Capability("predict_outcome", core.PermissionReadExecute).Build(),
		nil,
	)
	predict.Fn = func(_ context.Context, _ string, params map[string]any, _ core.UserContext) (*core.Result, error) {
		mu.Lock()
		order = append(order, "predict")
		handedOff = params["dependency_result"]
		mu.Unlock()
		return &core.Result{Payload: "prediction"}, nil
	}

	o := orchestratorOver(t, registryWith(t, fetch, predict))
	req := testutil.RequestAs("analyze", "u1", core.PermissionReadExecute, map[string]any{
		"subtasks": []any{
			map[string]any{"name": "outcome", "action": "predict_outcome", "depends_on": "games"},
			map[string]any{"name": "games", "action": "fetch_games"},
		},
	})
	resp := o.Submit(context.Background(), req)

	require.True(t, resp.Success, "error: %s", resp.Error)
	assert.Equal(t, []string{"fetch", "predict"}, order)
	assert.Equal(t, "game list", handedOff)
}

func TestSubmit_DependencyFailureSkipsDependent(t *testing.T) {
	predict := testutil.NewStubAgent(
		testutil.NewDescriptor("pred-1").Type("prediction").
			Capability("predict_outcome", core.PermissionReadExecute).Build(),
		"prediction",
	)
	o := orchestratorOver(t, registryWith(t, predict))

	req := testutil.RequestAs("analyze", "u1", core.PermissionReadExecute, map[string]any{
		"subtasks": []any{
			map[string]any{"name": "games", "action": "fetch_games"},
			map[string]any{"name": "outcome", "action": "predict_outcome", "depends_on": "games"},
		},
	})
	resp := o.Submit(context.Background(), req)

	assert.False(t, resp.Success, "both sub-tasks failed")
	assert.Len(t, resp.FailedSubtasks, 2)
	assert.EqualValues(t, 0, predict.Calls(), "dependent must not run after its dependency failed")
}

func TestSubmit_RetryOnAgentUnavailable(t *testing.T) {
	flaky := testutil.NewStubAgent(
		testutil.NewDescriptor("flaky").Type("prediction").
			CapabilityDur("predict_outcome", core.PermissionReadExecute, time.Millisecond).Build(),
		nil,
	)
	flaky.Fn = func(context.Context, string, map[string]any, core.UserContext) (*core.Result, error) {
		return nil, core.NewError(core.KindAgentUnavailable, "model store flapping")
	}
	healthy := testutil.NewStubAgent(
		testutil.NewDescriptor("healthy").Type("prediction").
			CapabilityDur("predict_outcome", core.PermissionReadExecute, time.Second).Build(),
		"recovered",
	)

	o := orchestratorOver(t, registryWith(t, flaky, healthy))
	resp := o.Submit(context.Background(), testutil.RequestAs("predict_outcome", "u1", core.PermissionReadExecute, nil))

	require.True(t, resp.Success, "error: %s", resp.Error)
	assert.Equal(t, "recovered", resp.Result)
	assert.EqualValues(t, 1, flaky.Calls())
	assert.EqualValues(t, 1, healthy.Calls())
}

func TestSubmit_TimeoutNeverRetried(t *testing.T) {
	slow := testutil.NewStubAgent(
		testutil.NewDescriptor("slow").Type("prediction").
			CapabilityDur("predict_outcome", core.PermissionReadExecute, time.Millisecond).Build(),
		nil,
	)
	slow.Fn = func(context.Context, string, map[string]any, core.UserContext) (*core.Result, error) {
		time.Sleep(500 * time.Millisecond)
		return &core.Result{Payload: "late"}, nil
	}
	backup := testutil.NewStubAgent(
		testutil.NewDescriptor("backup").Type("prediction").
			CapabilityDur("predict_outcome", core.PermissionReadExecute, time.Second).Build(),
		"should not run",
	)

	o := orchestratorOver(t, registryWith(t, slow, backup), func(o *Options) {
		o.InvocationTimeout = 50 * time.Millisecond
	})
	resp := o.Submit(context.Background(), testutil.RequestAs("predict_outcome", "u1", core.PermissionReadExecute, nil))

	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.FailedSubtasks)
	assert.Equal(t, core.KindTimeout, resp.FailedSubtasks[0].Kind)
	assert.EqualValues(t, 0, backup.Calls(), "timeouts must not be retried")
}

// A request the caller cancelled must not masquerade as the agent timing
// out; the failure names the cancellation.
func TestSubmit_CancellationNotReportedAsTimeout(t *testing.T) {
	busy := testutil.NewStubAgent(
		testutil.NewDescriptor("busy").Type("prediction").
			Capability("predict_outcome", core.PermissionReadExecute).Build(),
		nil,
	)
	busy.Fn = func(context.Context, string, map[string]any, core.UserContext) (*core.Result, error) {
		// ignores cancellation on purpose
		time.Sleep(300 * time.Millisecond)
		return &core.Result{Payload: "late"}, nil
	}
	o := orchestratorOver(t, registryWith(t, busy))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := o.Submit(ctx, testutil.RequestAs("predict_outcome", "u1", core.PermissionReadExecute, nil))

	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.FailedSubtasks)
	assert.NotEqual(t, core.KindTimeout, resp.FailedSubtasks[0].Kind)
	assert.Equal(t, core.KindInternal, resp.FailedSubtasks[0].Kind)
	assert.Contains(t, resp.FailedSubtasks[0].Message, "cancelled")
}

func TestSubmit_PanicRecovered(t *testing.T) {
	angry := testutil.NewStubAgent(
		testutil.NewDescriptor("angry").Type("prediction").
			Capability("predict_outcome", core.PermissionReadExecute).Build(),
		nil,
	)
	angry.Fn = func(context.Context, string, map[string]any, core.UserContext) (*core.Result, error) {
		panic("nil map write")
	}

	o := orchestratorOver(t, registryWith(t, angry))
	resp := o.Submit(context.Background(), testutil.RequestAs("predict_outcome", "u1", core.PermissionReadExecute, nil))

	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.FailedSubtasks)
	assert.Equal(t, core.KindInternal, resp.FailedSubtasks[0].Kind)
}

func TestPlanFor(t *testing.T) {
	req := testutil.Request("predict_outcome", "u1", map[string]any{"week": 5})
	plan, err := planFor(req)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "predict_outcome", plan[0].Action)

	// duplicate names rejected
	req = testutil.Request("analyze", "u1", map[string]any{
		"subtasks": []any{
			map[string]any{"name": "x", "action": "a"},
			map[string]any{"name": "x", "action": "b"},
		},
	})
	_, err = planFor(req)
	assert.True(t, core.IsKind(err, core.KindValidation))

	// unknown dependency rejected
	req = testutil.Request("analyze", "u1", map[string]any{
		"subtasks": []any{
			map[string]any{"name": "x", "action": "a", "depends_on": "ghost"},
		},
	})
	_, err = planFor(req)
	assert.True(t, core.IsKind(err, core.KindValidation))

	// cycles rejected
	req = testutil.Request("analyze", "u1", map[string]any{
		"subtasks": []any{
			map[string]any{"name": "x", "action": "a", "depends_on": "y"},
			map[string]any{"name": "y", "action": "b", "depends_on": "x"},
		},
	})
	_, err = planFor(req)
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestWaves(t *testing.T) {
	plan := []Subtask{
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "c", DependsOn: []string{"a"}},
		{Name: "d", DependsOn: []string{"b", "c"}},
	}
	ws := waves(plan)
	require.Len(t, ws, 3)
	assert.Len(t, ws[0], 1)
	assert.Len(t, ws[1], 2)
	assert.Len(t, ws[2], 1)
}

func TestSynthesize_ConflictResolution(t *testing.T) {
	req := testutil.Request("predict_outcome", "u1", nil)
	base := Subtask{Name: "a", Action: "predict_outcome"}
	other := Subtask{Name: "b", Action: "predict_outcome"}

	// higher confidence wins
	resp := synthesize(req, []subtaskResult{
		{task: base, agentID: "a1", result: &core.Result{Payload: "chiefs", Confidence: 0.9}},
		{task: other, agentID: "a2", result: &core.Result{Payload: "bills", Confidence: 0.4}},
	}, time.Now())
	require.True(t, resp.Success)
	assert.False(t, resp.Conflicted)
	payload := resp.Result.(map[string]any)
	assert.Equal(t, "chiefs", payload["a"])
	assert.NotContains(t, payload, "b")

	// confidence tie: higher agent permission wins
	resp = synthesize(req, []subtaskResult{
		{task: base, agentID: "a1", permission: core.PermissionReadExecute, result: &core.Result{Payload: "chiefs", Confidence: 0.5}},
		{task: other, agentID: "a2", permission: core.PermissionAdmin, result: &core.Result{Payload: "bills", Confidence: 0.5}},
	}, time.Now())
	require.True(t, resp.Success)
	assert.False(t, resp.Conflicted)
	assert.Equal(t, "bills", resp.Result.(map[string]any)["b"])

	// full tie: both surfaced, conflict flagged
	resp = synthesize(req, []subtaskResult{
		{task: base, agentID: "a1", permission: core.PermissionReadExecute, result: &core.Result{Payload: "chiefs", Confidence: 0.5}},
		{task: other, agentID: "a2", permission: core.PermissionReadExecute, result: &core.Result{Payload: "bills", Confidence: 0.5}},
	}, time.Now())
	require.True(t, resp.Success)
	assert.True(t, resp.Conflicted)
	payload = resp.Result.(map[string]any)
	assert.Equal(t, "chiefs", payload["a"])
	assert.Equal(t, "bills", payload["b"])
}
