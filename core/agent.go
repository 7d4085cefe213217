package core

import "context"

// Result is the payload an agent produces for a single action. Payload is
// opaque to the core; Confidence (when meaningful) is in [0,1] and is used
// by response synthesis to resolve conflicts between sub-results.
type Result struct {
	Payload    any     `json:"payload"`
	Confidence float64 `json:"confidence,omitempty"`
	// NeedsReview asks the orchestrator to route this result through peer
	// review before accepting it.
	NeedsReview bool `json:"needs_review,omitempty"`
}

// Agent is the common contract every specialized handler implements.
//
// Implementations must:
//   - Respect context cancellation; an agent that ignores it is abandoned
//     at the invocation timeout regardless.
//   - Gate every capability behind the permission check; routing performs
//     the same check but the agent boundary is the hard gate.
//   - Return structured core errors (never panic; a panic is recovered at
//     the orchestrator boundary and converted to an internal agent error).
type Agent interface {
	// Descriptor returns the immutable identity and capability table.
	Descriptor() AgentDescriptor

	// Execute services one action. params carries action arguments; userCtx
	// identifies the caller and their role/permission hints.
	Execute(ctx context.Context, action string, params map[string]any, userCtx UserContext) (*Result, error)
}

// UserContext is the caller identity and role information attached to a
// request. It must contain a user id; role and permission hints are optional.
type UserContext map[string]any

// UserID returns the caller's user id, or "" when absent.
func (u UserContext) UserID() string {
	if v, ok := u["user_id"].(string); ok {
		return v
	}
	return ""
}

// Role returns the caller's declared role hint, or "" when absent.
func (u UserContext) Role() string {
	if v, ok := u["role"].(string); ok {
		return v
	}
	return ""
}

// Permission resolves the caller's held permission level. An explicit
// "permission" entry wins; otherwise the declared role maps through
// RolePermission. Absent or malformed hints resolve to ReadOnly.
func (u UserContext) Permission() PermissionLevel {
	if v, ok := u["permission"].(string); ok {
		if lvl, err := ParsePermissionLevel(v); err == nil {
			return lvl
		}
		return PermissionReadOnly
	}
	if lvl, ok := u["permission"].(PermissionLevel); ok && lvl.Valid() {
		return lvl
	}
	return RolePermission(u.Role())
}

// RolePermission maps a user role to its held permission level. Unknown
// roles resolve to the most restrictive tier.
func RolePermission(role string) PermissionLevel {
	switch role {
	case "admin":
		return PermissionAdmin
	case "analyst", "production":
		return PermissionReadExecuteWrite
	case "coach", "scout":
		return PermissionReadExecute
	default:
		return PermissionReadOnly
	}
}
