// Package agents provides the concrete analytics agents that plug into the
// registry, plus a BaseAgent embed that handles capability lookup,
// availability and permission gating so implementations only supply action
// handlers.
package agents

import (
	"context"

	"github.com/gridironlabs/huddle/core"
)

// Handler services one action. Params carry the action arguments; the
// returned result is opaque to the core.
type Handler func(ctx context.Context, params map[string]any, userCtx core.UserContext) (*core.Result, error)

// BaseAgent bundles the descriptor and the action dispatch table. Embed it
// and register handlers with Handle; Execute gates every call behind the
// capability's availability flag and the permission check before the
// handler runs. The dispatch table is populated at construction time and
// read-only afterwards, so Execute needs no locking.
type BaseAgent struct {
	desc     core.AgentDescriptor
	handlers map[string]Handler
}

// NewBaseAgent creates a BaseAgent for the given descriptor.
func NewBaseAgent(desc core.AgentDescriptor) BaseAgent {
	return BaseAgent{desc: desc, handlers: make(map[string]Handler)}
}

// Handle registers the handler for an action. Call during construction only.
func (b *BaseAgent) Handle(action string, h Handler) {
	b.handlers[action] = h
}

// Descriptor implements core.Agent.
func (b *BaseAgent) Descriptor() core.AgentDescriptor { return b.desc }

// Execute implements core.Agent. The permission check here is the hard
// gate: routing performs the same check, but a handler can never run for a
// caller below the capability's required level even when invoked directly.
func (b *BaseAgent) Execute(ctx context.Context, action string, params map[string]any, userCtx core.UserContext) (*core.Result, error) {
	cap, ok := b.desc.Capability(action)
	if !ok {
		return nil, core.NewError(core.KindCapabilityMismatch, "agent %s does not expose action %q", b.desc.AgentID, action)
	}
	if !cap.Available {
		return nil, core.NewError(core.KindAgentUnavailable, "capability %q on agent %s is unavailable", action, b.desc.AgentID)
	}
	if !core.Permits(b.desc.Permission, cap.RequiredPermission) {
		return nil, core.NewError(core.KindPermissionDenied, "agent %s holds %s, below %s required by %q",
			b.desc.AgentID, b.desc.Permission, cap.RequiredPermission, action)
	}
	if err := core.CheckPermission(userCtx.Permission(), cap.RequiredPermission, action); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, ok := b.handlers[action]
	if !ok {
		return nil, core.NewError(core.KindInternal, "agent %s declares %q but has no handler", b.desc.AgentID, action)
	}
	result, err := h(ctx, params, userCtx)
	if err != nil {
		if core.KindOf(err) == core.KindInternal {
			return nil, core.WrapError(core.KindInternal, err, "agent %s action %q", b.desc.AgentID, action)
		}
		return nil, err
	}
	return result, nil
}
