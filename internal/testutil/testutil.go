// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing descriptors, requests and agents. These
// helpers are intentionally minimal and are not intended for production
// usage.
package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gridironlabs/huddle/core"
)

// DescriptorBuilder provides a fluent helper for constructing agent
// descriptors in tests. Chain only the parts you need; sensible defaults
// are applied.
type DescriptorBuilder struct {
	desc core.AgentDescriptor
}

// NewDescriptor creates a builder with reasonable defaults.
func NewDescriptor(agentID string) *DescriptorBuilder {
	return &DescriptorBuilder{desc: core.AgentDescriptor{
		AgentID:    agentID,
		AgentType:  "test",
		Name:       "Test Agent",
		Permission: core.PermissionReadExecute,
	}}
}

// Type sets the agent type (chainable).
func (b *DescriptorBuilder) Type(t string) *DescriptorBuilder {
	b.desc.AgentType = t
	return b
}

// Permission sets the agent's held level (chainable).
func (b *DescriptorBuilder) Permission(p core.PermissionLevel) *DescriptorBuilder {
	b.desc.Permission = p
	return b
}

// Capability appends an available capability (chainable).
func (b *DescriptorBuilder) Capability(name string, required core.PermissionLevel) *DescriptorBuilder {
	b.desc.Capabilities = append(b.desc.Capabilities, core.Capability{
		Name:               name,
		Description:        name,
		RequiredPermission: required,
		EstimatedDuration:  10 * time.Millisecond,
		Available:          true,
	})
	return b
}

// CapabilityDur appends an available capability with a declared execution
// estimate (chainable).
func (b *DescriptorBuilder) CapabilityDur(name string, required core.PermissionLevel, dur time.Duration) *DescriptorBuilder {
	b.desc.Capabilities = append(b.desc.Capabilities, core.Capability{
		Name:               name,
		Description:        name,
		RequiredPermission: required,
		EstimatedDuration:  dur,
		Available:          true,
	})
	return b
}

// Build returns the descriptor.
func (b *DescriptorBuilder) Build() core.AgentDescriptor { return b.desc }

// StubAgent is a programmable agent for tests. Fn services every action;
// Calls counts invocations.
type StubAgent struct {
	Desc  core.AgentDescriptor
	Fn    func(ctx context.Context, action string, params map[string]any, userCtx core.UserContext) (*core.Result, error)
	calls atomic.Int64
}

var _ core.Agent = (*StubAgent)(nil)

// NewStubAgent creates a stub that returns a fixed payload for every action.
func NewStubAgent(desc core.AgentDescriptor, payload any) *StubAgent {
	return &StubAgent{
		Desc: desc,
		Fn: func(context.Context, string, map[string]any, core.UserContext) (*core.Result, error) {
			return &core.Result{Payload: payload, Confidence: 1}, nil
		},
	}
}

// Descriptor implements core.Agent.
func (a *StubAgent) Descriptor() core.AgentDescriptor { return a.Desc }

// Execute implements core.Agent.
func (a *StubAgent) Execute(ctx context.Context, action string, params map[string]any, userCtx core.UserContext) (*core.Result, error) {
	a.calls.Add(1)
	return a.Fn(ctx, action, params, userCtx)
}

// Calls reports how many times Execute ran.
func (a *StubAgent) Calls() int64 { return a.calls.Load() }

// Request builds a valid request for the given action and user id.
func Request(action, userID string, params map[string]any) *core.AgentRequest {
	return core.NewRequest(action, params, core.UserContext{"user_id": userID})
}

// RequestAs builds a valid request carrying an explicit permission hint.
func RequestAs(action, userID string, level core.PermissionLevel, params map[string]any) *core.AgentRequest {
	return core.NewRequest(action, params, core.UserContext{
		"user_id":    userID,
		"permission": level.String(),
	})
}
