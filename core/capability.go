package core

import (
	"fmt"
	"time"
)

// Capability is a named, permission-gated operation an agent exposes.
//
// Availability is an explicit flag rather than a runtime probe: a capability
// whose external dependency (a model file, an API credential) failed to load
// is registered with Available=false and the router never offers it as a
// candidate. This replaces try/catch-deep-inside-execution fallbacks with a
// check at routing time.
type Capability struct {
	// Name uniquely identifies the operation within one agent (snake_case).
	Name string `json:"name"`
	// Description is shown to humans and to expert-routing heuristics.
	Description string `json:"description"`
	// RequiredPermission is the minimum level a caller must hold.
	RequiredPermission PermissionLevel `json:"required_permission"`
	// RequiredResources lists external tools or data-access paths the
	// capability depends on (model identifiers, API scopes).
	RequiredResources []string `json:"required_resources,omitempty"`
	// EstimatedDuration is a routing hint, not a deadline.
	EstimatedDuration time.Duration `json:"estimated_duration"`
	// Available gates whether the router may offer this capability.
	Available bool `json:"available"`
}

// AgentDescriptor identifies an agent instance and enumerates its
// capabilities. Descriptors are immutable after construction; the registry
// hands out copies.
type AgentDescriptor struct {
	// AgentID is the unique instance identifier.
	AgentID string `json:"agent_id"`
	// AgentType categorizes the implementation ("prediction", "data", ...).
	AgentType string `json:"agent_type"`
	// Name is the human-readable name.
	Name string `json:"name"`
	// Permission is the level this agent itself holds. An agent can never
	// service a capability above its own level regardless of the caller.
	Permission PermissionLevel `json:"permission"`
	// Capabilities is the ordered capability list. Names are unique.
	Capabilities []Capability `json:"capabilities"`
}

// Capability returns the named capability and whether it exists.
func (d AgentDescriptor) Capability(name string) (Capability, bool) {
	for _, c := range d.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// Validate checks descriptor invariants: non-empty identity fields, a valid
// permission level and unique capability names.
func (d AgentDescriptor) Validate() error {
	if d.AgentID == "" || d.AgentType == "" {
		return fmt.Errorf("agent descriptor missing id or type")
	}
	if !d.Permission.Valid() {
		return fmt.Errorf("agent %s: invalid permission level %d", d.AgentID, int(d.Permission))
	}
	seen := make(map[string]struct{}, len(d.Capabilities))
	for _, c := range d.Capabilities {
		if c.Name == "" {
			return fmt.Errorf("agent %s: capability with empty name", d.AgentID)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("agent %s: duplicate capability %q", d.AgentID, c.Name)
		}
		if !c.RequiredPermission.Valid() {
			return fmt.Errorf("agent %s: capability %q has invalid required permission", d.AgentID, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}
