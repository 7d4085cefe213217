// Package registry maps agent-type identifiers to constructors and tracks
// the live agent instances with their capability descriptors and in-flight
// load. Registration happens at startup; the instance table is effectively
// read-only on the request path, so lookups take only a read lock.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/logging"
)

// Constructor builds an agent instance with the given id. Construction
// failures (a missing model file, an absent credential) surface as
// agent-unavailable errors rather than crashing the registry.
type Constructor func(agentID string) (core.Agent, error)

// Instance pairs a live agent with its descriptor and load accounting.
type Instance struct {
	agent       core.Agent
	desc        core.AgentDescriptor
	inFlight    atomic.Int64
	maxInFlight int64
}

// Agent returns the underlying agent.
func (i *Instance) Agent() core.Agent { return i.agent }

// Descriptor returns the agent's immutable descriptor.
func (i *Instance) Descriptor() core.AgentDescriptor { return i.desc }

// Load returns the current number of in-flight invocations.
func (i *Instance) Load() int64 { return i.inFlight.Load() }

// AtCapacity reports whether the instance has reached its concurrency limit.
func (i *Instance) AtCapacity() bool {
	return i.maxInFlight > 0 && i.inFlight.Load() >= i.maxInFlight
}

// Acquire reserves an invocation slot, returning false at capacity. Every
// successful Acquire must be paired with Release.
func (i *Instance) Acquire() bool {
	for {
		cur := i.inFlight.Load()
		if i.maxInFlight > 0 && cur >= i.maxInFlight {
			return false
		}
		if i.inFlight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns an invocation slot.
func (i *Instance) Release() { i.inFlight.Add(-1) }

// Options configures a Registry.
type Options struct {
	// MaxInFlightPerAgent caps concurrent invocations per instance.
	// 0 means unlimited.
	MaxInFlightPerAgent int64
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Registry is the capability registry. Register and Create are startup-time
// operations; List and the instance accessors are safe on the hot path.
type Registry struct {
	mu        sync.RWMutex
	ctors     map[string]Constructor
	instances map[string]*Instance
	byType    map[string][]*Instance

	maxInFlight int64
	logger      logging.Logger
}

// New creates an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{MaxInFlightPerAgent: 4}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		ctors:       make(map[string]Constructor),
		instances:   make(map[string]*Instance),
		byType:      make(map[string][]*Instance),
		maxInFlight: opts.MaxInFlightPerAgent,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// Register makes an agent type constructible. A duplicate type is rejected
// here, at startup, not at request time.
func (r *Registry) Register(agentType string, ctor Constructor) error {
	if agentType == "" {
		return fmt.Errorf("agent type is required")
	}
	if ctor == nil {
		return fmt.Errorf("constructor for %q is nil", agentType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ctors[agentType]; dup {
		return fmt.Errorf("agent type %q already registered", agentType)
	}
	r.ctors[agentType] = ctor
	return nil
}

// Create constructs and tracks a new instance of agentType. Constructor
// failures and invalid descriptors surface as agent-unavailable errors.
func (r *Registry) Create(agentType, agentID string) (*Instance, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[agentType]
	r.mu.RUnlock()
	if !ok {
		return nil, core.NewError(core.KindAgentUnavailable, "agent type %q is not registered", agentType)
	}

	agent, err := ctor(agentID)
	if err != nil {
		return nil, core.WrapError(core.KindAgentUnavailable, err, "constructing agent %q of type %q", agentID, agentType)
	}
	desc := agent.Descriptor()
	if err := desc.Validate(); err != nil {
		return nil, core.WrapError(core.KindAgentUnavailable, err, "invalid descriptor for agent %q", agentID)
	}
	if desc.AgentType != agentType {
		return nil, core.NewError(core.KindAgentUnavailable, "agent %q reports type %q, registered as %q", agentID, desc.AgentType, agentType)
	}

	inst := &Instance{agent: agent, desc: desc, maxInFlight: r.maxInFlight}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.instances[desc.AgentID]; dup {
		return nil, core.NewError(core.KindAgentUnavailable, "agent id %q already exists", desc.AgentID)
	}
	r.instances[desc.AgentID] = inst
	r.byType[agentType] = append(r.byType[agentType], inst)
	r.logger.Info("agent created", "agent_id", desc.AgentID, "agent_type", agentType, "capabilities", len(desc.Capabilities))
	return inst, nil
}

// List returns the descriptors of every live instance, ordered by agent id.
func (r *Registry) List() []core.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.AgentDescriptor, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Instances returns every live instance, ordered by agent id.
func (r *Registry) Instances() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].desc.AgentID < out[j].desc.AgentID })
	return out
}

// Instance returns the live instance with the given agent id.
func (r *Registry) Instance(agentID string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[agentID]
	return inst, ok
}
