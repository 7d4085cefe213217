package core

import (
	"time"
)

// AgentRequest is the caller-facing request envelope. AgentType may be left
// empty for automatic routing. Timestamps are assigned by the caller and are
// expected to be monotonically increasing per user.
type AgentRequest struct {
	ID          string         `json:"id"`
	AgentType   string         `json:"agent_type,omitempty"`
	Action      string         `json:"action"`
	Params      map[string]any `json:"params,omitempty"`
	UserContext UserContext    `json:"user_context"`
	Timestamp   time.Time      `json:"timestamp"`
	// Priority orders competing requests; higher is more urgent.
	Priority int `json:"priority,omitempty"`
}

// NewRequest builds a request with a fresh id and the current timestamp.
func NewRequest(action string, params map[string]any, userCtx UserContext) *AgentRequest {
	return &AgentRequest{
		ID:          NewID(),
		Action:      action,
		Params:      params,
		UserContext: userCtx,
		Timestamp:   time.Now().UTC(),
	}
}

// Validate rejects malformed requests before routing. This is the cheapest
// failure path: no context is loaded and no agent is consulted.
func (r *AgentRequest) Validate() error {
	if r == nil {
		return NewError(KindValidation, "nil request")
	}
	if r.ID == "" {
		return NewError(KindValidation, "request id is required")
	}
	if r.Action == "" {
		return NewError(KindValidation, "action is required")
	}
	if r.UserContext.UserID() == "" {
		return NewError(KindValidation, "user context must contain a user id")
	}
	if r.Timestamp.IsZero() {
		return NewError(KindValidation, "timestamp is required")
	}
	return nil
}

// SubtaskFailure names one failed sub-task inside a partial response.
type SubtaskFailure struct {
	Action  string    `json:"action"`
	AgentID string    `json:"agent_id,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// AgentResponse is the single, always well-formed reply the caller receives.
// Exactly one of Result / Error is populated according to Success. A partial
// success (some sub-tasks failed) still reports Success=true with the failed
// sub-tasks enumerated.
type AgentResponse struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	// Conflicted marks a response whose sub-results disagreed and could not
	// be resolved by the conflict policy; both results are surfaced.
	Conflicted     bool             `json:"conflicted,omitempty"`
	FailedSubtasks []SubtaskFailure `json:"failed_subtasks,omitempty"`
	Duration       time.Duration    `json:"duration"`
	AgentID        string           `json:"agent_id"`
}

// FailureResponse builds a failed response from an error, preserving its kind
// in the failed sub-task list so callers can branch without string matching.
func FailureResponse(requestID, agentID string, err error) *AgentResponse {
	return &AgentResponse{
		RequestID: requestID,
		Success:   false,
		Error:     err.Error(),
		AgentID:   agentID,
		FailedSubtasks: []SubtaskFailure{
			{AgentID: agentID, Kind: KindOf(err), Message: err.Error()},
		},
	}
}
