// Package router matches an incoming request to the capable, permitted,
// available agent instances that should service it that can still accept
// work. When no candidate exists it distinguishes "nobody exposes this
// action" from "somebody does but the caller may not invoke it" so the
// orchestrator can report precisely which gate failed.
package router

import (
	"sort"

	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/logging"
	"github.com/gridironlabs/huddle/registry"
)

// Options configures a Router.
type Options struct {
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Router selects agent instances for requests.
type Router struct {
	registry *registry.Registry
	logger   logging.Logger
}

// New creates a Router over the given registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Router {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{registry: reg, logger: logging.OrNoOp(opts.Logger)}
}

// Candidates returns every instance able to service the request's action,
// best first. The candidate set requires, per instance:
//
//   - a capability whose name matches the action, flagged Available
//   - the agent's own held level permits the capability
//   - the caller's held level permits the capability
//   - the instance is under its concurrency limit
//
// Ordering: exact agent-type match when the caller specified one, then
// lowest in-flight load, then lowest declared execution-time estimate, then
// agent id lexical order as the deterministic fallback.
//
// An empty candidate set yields a CapabilityMismatch when no agent exposes
// the action at all, and a PermissionDenied when at least one does but the
// caller's level is below its requirement.
func (r *Router) Candidates(req *core.AgentRequest) ([]*registry.Instance, error) {
	caller := req.UserContext.Permission()

	type candidate struct {
		inst     *registry.Instance
		cap      core.Capability
		typeHit  bool
		loadSnap int64
	}

	var (
		out          []candidate
		actionExists bool
		denied       bool
	)
	for _, inst := range r.registry.Instances() {
		desc := inst.Descriptor()
		cap, ok := desc.Capability(req.Action)
		if !ok || !cap.Available {
			continue
		}
		actionExists = true
		if !core.Permits(desc.Permission, cap.RequiredPermission) || !core.Permits(caller, cap.RequiredPermission) {
			denied = true
			continue
		}
		if inst.AtCapacity() {
			continue
		}
		out = append(out, candidate{
			inst:     inst,
			cap:      cap,
			typeHit:  req.AgentType != "" && desc.AgentType == req.AgentType,
			loadSnap: inst.Load(),
		})
	}

	if len(out) == 0 {
		if !actionExists {
			return nil, core.NewError(core.KindCapabilityMismatch, "no agent exposes action %q", req.Action)
		}
		if denied {
			return nil, core.NewError(core.KindPermissionDenied, "action %q exists but caller holding %s is not permitted", req.Action, caller)
		}
		return nil, core.NewError(core.KindAgentUnavailable, "all agents exposing %q are at capacity", req.Action)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].typeHit != out[j].typeHit {
			return out[i].typeHit
		}
		if out[i].loadSnap != out[j].loadSnap {
			return out[i].loadSnap < out[j].loadSnap
		}
		if out[i].cap.EstimatedDuration != out[j].cap.EstimatedDuration {
			return out[i].cap.EstimatedDuration < out[j].cap.EstimatedDuration
		}
		return out[i].inst.Descriptor().AgentID < out[j].inst.Descriptor().AgentID
	})

	insts := make([]*registry.Instance, len(out))
	for i, c := range out {
		insts[i] = c.inst
	}
	r.logger.Debug("route candidates", "action", req.Action, "count", len(insts), "selected", insts[0].Descriptor().AgentID)
	return insts, nil
}

// Route returns the single best instance for the request.
func (r *Router) Route(req *core.AgentRequest) (*registry.Instance, error) {
	candidates, err := r.Candidates(req)
	if err != nil {
		return nil, err
	}
	return candidates[0], nil
}
