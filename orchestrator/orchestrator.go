// Package orchestrator is the coordination core: it validates requests,
// assembles role-scoped context, plans sub-tasks, drives them through the
// router and the agent pool, and folds the outcomes into one response.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridironlabs/huddle/collab"
	"github.com/gridironlabs/huddle/contextopt"
	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/logging"
	"github.com/gridironlabs/huddle/memory"
	"github.com/gridironlabs/huddle/registry"
	"github.com/gridironlabs/huddle/router"
)

const (
	// DefaultPoolSize bounds concurrently executing sub-tasks per request.
	DefaultPoolSize = 8
	// DefaultInvocationTimeout bounds a single agent invocation. An agent
	// that ignores cancellation is abandoned when it elapses.
	DefaultInvocationTimeout = 30 * time.Second
)

// Options configures an Orchestrator.
type Options struct {
	// Memory is the conversation memory. Optional.
	Memory *memory.Memory
	// Optimizer reduces ambient context per caller role. Optional.
	Optimizer *contextopt.Optimizer
	// Collab handles peer review and shared knowledge. Optional; without
	// it, results flagged for review are accepted as-is.
	Collab *collab.Manager
	// ContextBundle is the ambient content optimized into every request.
	ContextBundle contextopt.Bundle
	// PoolSize caps concurrent sub-task execution. Default 8.
	PoolSize int
	// InvocationTimeout bounds each agent call. Default 30s.
	InvocationTimeout time.Duration
	// Metrics defaults to unregistered collectors.
	Metrics *Metrics
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Orchestrator coordinates request execution across the agent pool.
type Orchestrator struct {
	router    *router.Router
	memory    *memory.Memory
	optimizer *contextopt.Optimizer
	collab    *collab.Manager
	bundle    contextopt.Bundle
	poolSize  int
	timeout   time.Duration
	metrics   *Metrics
	logger    logging.Logger
}

// New creates an Orchestrator over the given router.
func New(rt *router.Router, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		PoolSize:          DefaultPoolSize,
		InvocationTimeout: DefaultInvocationTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}
	if opts.InvocationTimeout <= 0 {
		opts.InvocationTimeout = DefaultInvocationTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Orchestrator{
		router:    rt,
		memory:    opts.Memory,
		optimizer: opts.Optimizer,
		collab:    opts.Collab,
		bundle:    opts.ContextBundle,
		poolSize:  opts.PoolSize,
		timeout:   opts.InvocationTimeout,
		metrics:   opts.Metrics,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// Submit runs one request end to end and always returns a well-formed
// response; errors surface inside the response, never alongside it.
func (o *Orchestrator) Submit(ctx context.Context, req *core.AgentRequest) *core.AgentResponse {
	started := time.Now()

	if err := req.Validate(); err != nil {
		o.metrics.Requests.WithLabelValues("invalid").Inc()
		var id string
		if req != nil {
			id = req.ID
		}
		return core.FailureResponse(id, "", err)
	}

	role := o.detectRole(req)
	userID := req.UserContext.UserID()
	if o.memory != nil {
		o.memory.StartSession(userID, req.Action)
	}

	reqCtx, ctxTokens := o.assembleContext(userID, role)

	plan, err := planFor(req)
	if err != nil {
		o.metrics.Requests.WithLabelValues("invalid").Inc()
		return core.FailureResponse(req.ID, "", err)
	}

	results := o.execute(ctx, req, plan, reqCtx)
	resp := synthesize(req, results, started)
	for _, r := range results {
		if r.reviewConflicted {
			resp.Conflicted = true
		}
	}

	status := "failed"
	if resp.Success {
		status = "ok"
		if len(resp.FailedSubtasks) > 0 {
			status = "partial"
		}
	}
	o.metrics.Requests.WithLabelValues(status).Inc()
	o.metrics.RequestSeconds.WithLabelValues(status).Observe(time.Since(started).Seconds())
	for _, f := range resp.FailedSubtasks {
		o.metrics.SubtaskFailures.WithLabelValues(string(f.Kind)).Inc()
	}

	if o.memory != nil {
		o.memory.AddTurn(userID, memory.Turn{
			UserID:      userID,
			Query:       queryText(req),
			Response:    fmt.Sprintf("%d/%d sub-tasks succeeded", len(results)-len(resp.FailedSubtasks), len(results)),
			ContextUsed: contextFingerprint(reqCtx),
			Tokens:      ctxTokens,
			Role:        role,
			Success:     resp.Success,
			Timestamp:   time.Now().UTC(),
		})
	}

	o.logger.Info("request complete",
		"request_id", req.ID, "status", status, "subtasks", len(results),
		"failed", len(resp.FailedSubtasks), "duration", time.Since(started))
	return resp
}

// detectRole resolves the caller's effective role. An explicit role hint
// wins; otherwise the held permission level maps to the closest role so
// the optimizer still has a profile to budget against.
func (o *Orchestrator) detectRole(req *core.AgentRequest) string {
	if role := req.UserContext.Role(); role != "" {
		return role
	}
	switch req.UserContext.Permission() {
	case core.PermissionAdmin:
		return "admin"
	case core.PermissionReadExecuteWrite:
		return "analyst"
	case core.PermissionReadExecute:
		return "coach"
	default:
		return "public"
	}
}

// assembleContext optimizes the ambient bundle for the role, then layers
// conversation memory on top. Returns the enhanced context and its token
// spend; nil and zero when neither layer is configured.
func (o *Orchestrator) assembleContext(userID, role string) (map[string]any, int) {
	var base map[string]any
	tokens := 0
	if o.optimizer != nil {
		opt := o.optimizer.Load(role, o.bundle)
		tokens = opt.TokenCount
		base = map[string]any{
			"role":       opt.Role,
			"data_scope": opt.DataScope,
			"resources":  opt.Resources,
			"tokens":     opt.TokenCount,
		}
	}
	if o.memory != nil {
		return o.memory.EnhanceContext(userID, base), tokens
	}
	return base, tokens
}

// queryText prefers the caller's free-text query over the bare action name
// when recording the turn.
func queryText(req *core.AgentRequest) string {
	if q, ok := req.Params["query"].(string); ok && q != "" {
		return q
	}
	return req.Action
}

// contextFingerprint condenses the context a request actually saw into a
// stable hash so turns can record it without retaining the content. Map
// rendering is key-sorted, so identical contexts always hash identically.
func contextFingerprint(reqCtx map[string]any) string {
	if len(reqCtx) == 0 {
		return ""
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%v", reqCtx)
	return fmt.Sprintf("%016x", h.Sum64())
}

// execute drives the plan wave by wave: every sub-task inside a wave runs
// concurrently under the pool limit, and each wave waits for the previous
// one so dependency results exist before dependents start.
func (o *Orchestrator) execute(ctx context.Context, req *core.AgentRequest, plan []Subtask, reqCtx map[string]any) []subtaskResult {
	done := make(map[string]subtaskResult, len(plan))
	var mu sync.Mutex

	for _, wave := range waves(plan) {
		// Dependencies always resolve in an earlier wave; hand each wave a
		// snapshot so workers never read the map while siblings write it.
		prior := make(map[string]subtaskResult, len(done))
		for k, v := range done {
			prior[k] = v
		}
		g, waveCtx := errgroup.WithContext(ctx)
		g.SetLimit(o.poolSize)
		for _, st := range wave {
			st := st
			g.Go(func() error {
				res := o.runSubtask(waveCtx, req, st, reqCtx, prior)
				mu.Lock()
				done[st.Name] = res
				mu.Unlock()
				return nil
			})
		}
		// Workers never return errors; failures live in their results.
		_ = g.Wait()
	}

	out := make([]subtaskResult, 0, len(plan))
	for _, st := range plan {
		out = append(out, done[st.Name])
	}
	return out
}

// runSubtask routes and invokes one sub-task. A retryable failure (agent
// unavailable) is retried once on the next best candidate; timeouts and
// every other kind are terminal for the sub-task.
func (o *Orchestrator) runSubtask(ctx context.Context, req *core.AgentRequest, st Subtask, reqCtx map[string]any, done map[string]subtaskResult) subtaskResult {
	res := subtaskResult{task: st}

	params := make(map[string]any, len(st.Params)+2)
	for k, v := range st.Params {
		params[k] = v
	}
	if reqCtx != nil {
		params["request_context"] = reqCtx
	}
	for _, dep := range st.DependsOn {
		prior := done[dep]
		if prior.err != nil {
			res.err = core.NewError(core.KindOf(prior.err), "dependency %q failed: %s", dep, prior.err)
			return res
		}
		params["dependency_result"] = prior.result.Payload
	}

	subReq := &core.AgentRequest{
		ID:          req.ID,
		AgentType:   st.AgentType,
		Action:      st.Action,
		Params:      params,
		UserContext: req.UserContext,
		Timestamp:   req.Timestamp,
		Priority:    req.Priority,
	}

	candidates, err := o.router.Candidates(subReq)
	if err != nil {
		res.err = err
		return res
	}

	attempts := 0
	for _, inst := range candidates {
		if attempts >= 2 {
			break
		}
		if !inst.Acquire() {
			continue
		}
		attempts++
		callStart := time.Now()
		result, invokeErr := o.invoke(ctx, inst, subReq)
		res.duration = time.Since(callStart)
		desc := inst.Descriptor()
		res.agentID = desc.AgentID
		res.agentType = desc.AgentType
		res.permission = desc.Permission
		res.result, res.err = result, invokeErr

		outcome := "ok"
		if invokeErr != nil {
			outcome = string(core.KindOf(invokeErr))
		}
		o.metrics.AgentCalls.WithLabelValues(desc.AgentType, outcome).Inc()

		if invokeErr == nil {
			o.review(ctx, &res)
			return res
		}
		if !core.KindOf(invokeErr).Retryable() {
			return res
		}
		o.logger.Warn("retrying on alternate agent",
			"action", st.Action, "failed_agent", desc.AgentID, "error", invokeErr)
	}
	if res.err == nil {
		res.err = core.NewError(core.KindAgentUnavailable, "no instance accepted action %q", st.Action)
	}
	return res
}

// invoke runs one agent call under the invocation timeout. The call runs in
// its own goroutine so an agent that ignores cancellation is abandoned, not
// waited on; the instance slot is released only when the call returns.
func (o *Orchestrator) invoke(ctx context.Context, inst *registry.Instance, req *core.AgentRequest) (*core.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type outcome struct {
		result *core.Result
		err    error
	}
	ch := make(chan outcome, 1)
	started := time.Now()
	desc := inst.Descriptor()

	go func() {
		defer inst.Release()
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: core.NewError(core.KindInternal, "agent %s panicked: %v", desc.AgentID, r)}
			}
		}()
		result, err := inst.Agent().Execute(callCtx, req.Action, req.Params, req.UserContext)
		ch <- outcome{result: result, err: err}
	}()

	select {
	case out := <-ch:
		o.metrics.AgentSeconds.WithLabelValues(desc.AgentType).Observe(time.Since(started).Seconds())
		o.logger.Debug("agent call",
			"agent_id", desc.AgentID, "action", req.Action,
			"duration", time.Since(started), "error", out.err)
		return out.result, out.err
	case <-callCtx.Done():
		o.metrics.AgentSeconds.WithLabelValues(desc.AgentType).Observe(time.Since(started).Seconds())
		if cause := context.Cause(callCtx); errors.Is(cause, context.Canceled) {
			return nil, core.WrapError(core.KindInternal, cause, "agent %s: %q cancelled by caller", desc.AgentID, req.Action)
		}
		return nil, core.NewError(core.KindTimeout, "agent %s did not answer %q within %s", desc.AgentID, req.Action, o.timeout)
	}
}

// review routes a result flagged NeedsReview through peer review. An
// approved round clears the flag; a conflicted round keeps the result but
// marks it so the response surfaces the disagreement.
func (o *Orchestrator) review(ctx context.Context, res *subtaskResult) {
	if o.collab == nil || res.result == nil || !res.result.NeedsReview {
		return
	}
	task, err := o.collab.InitiatePeerReview(ctx, res.agentID, res.task.Action, res.result.Payload)
	if err != nil {
		o.logger.Warn("peer review unavailable", "action", res.task.Action, "error", err)
		return
	}
	o.metrics.PeerReviews.WithLabelValues(string(task.Status)).Inc()
	switch task.Status {
	case collab.TaskResolved:
		res.result.NeedsReview = false
	case collab.TaskConflicted:
		res.reviewConflicted = true
	}
}
