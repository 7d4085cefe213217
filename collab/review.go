package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/gridironlabs/huddle/core"
)

// ReviewAction is the capability name reviewer agents expose.
const ReviewAction = "peer_review"

// TaskStatus is the peer-review state machine:
//
//	PENDING -> IN_REVIEW -> {RESOLVED, CONFLICTED}
//
// RESOLVED and CONFLICTED are terminal.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInReview   TaskStatus = "IN_REVIEW"
	TaskResolved   TaskStatus = "RESOLVED"
	TaskConflicted TaskStatus = "CONFLICTED"
)

// Verdict is a reviewer's judgment of the payload under review.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictRevise  Verdict = "revise"
	VerdictReject  Verdict = "reject"
)

// Review is one reviewer's returned judgment.
type Review struct {
	ReviewerID string  `json:"reviewer_id"`
	Verdict    Verdict `json:"verdict"`
	Notes      string  `json:"notes,omitempty"`
}

// Task is one peer-review request. The initiator's own submission counts as
// a pending vote, never as an approval; resolution requires a majority of
// the assigned reviewers to approve.
type Task struct {
	ID          string     `json:"id"`
	InitiatorID string     `json:"initiator_id"`
	Action      string     `json:"action"`
	Payload     any        `json:"payload"`
	Reviewers   []string   `json:"reviewers"`
	Reviews     []Review   `json:"reviews"`
	Status      TaskStatus `json:"status"`
	Resolution  string     `json:"resolution,omitempty"`
	Created     time.Time  `json:"created"`
}

// Task returns a snapshot of a tracked task.
func (m *Manager) Task(id string) (Task, bool) {
	m.tasksMu.RLock()
	defer m.tasksMu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// InitiatePeerReview assigns up to the configured number of reviewer agents
// to validate the payload an agent produced for an action, runs them
// concurrently, and resolves the task by majority vote: RESOLVED when more
// than half of the assigned reviewers approve, CONFLICTED otherwise.
// CONFLICTED tasks are escalated to the orchestrator, which decides per its
// conflict policy.
func (m *Manager) InitiatePeerReview(ctx context.Context, initiatorID, action string, payload any) (*Task, error) {
	reviewers := m.pickReviewers(action, initiatorID)
	if len(reviewers) == 0 {
		return nil, core.NewError(core.KindAgentUnavailable, "no reviewer available for action %q", action)
	}

	task := &Task{
		ID:          core.NewID(),
		InitiatorID: initiatorID,
		Action:      action,
		Payload:     payload,
		Reviewers:   reviewers,
		Status:      TaskPending,
		Created:     time.Now().UTC(),
	}
	m.tasksMu.Lock()
	m.tasks[task.ID] = task
	m.tasksMu.Unlock()

	m.transition(task, TaskInReview)

	reviews := make(chan Review, len(reviewers))
	for _, reviewerID := range reviewers {
		go func(reviewerID string) {
			reviews <- m.runReviewer(ctx, reviewerID, task)
		}(reviewerID)
	}
	// Collect locally; the task is already visible through Task(id), so its
	// fields only change under tasksMu.
	collected := make([]Review, 0, len(reviewers))
	for range reviewers {
		collected = append(collected, <-reviews)
	}

	approvals := 0
	for _, rv := range collected {
		if rv.Verdict == VerdictApprove {
			approvals++
		}
	}
	next := TaskResolved
	resolution := fmt.Sprintf("%d of %d reviewers approved", approvals, len(reviewers))
	if approvals <= len(reviewers)/2 {
		next = TaskConflicted
		resolution = fmt.Sprintf("no majority: %d of %d reviewers approved", approvals, len(reviewers))
	}
	m.tasksMu.Lock()
	task.Reviews = collected
	task.Resolution = resolution
	m.tasksMu.Unlock()
	m.transition(task, next)
	m.logger.Info("peer review finished", "task_id", task.ID, "status", string(task.Status), "approvals", approvals, "reviewers", len(reviewers))
	return task, nil
}

// pickReviewers selects distinct reviewer agents exposing the review
// capability, excluding the initiator, lowest load first.
func (m *Manager) pickReviewers(action, initiatorID string) []string {
	exclude := map[string]struct{}{initiatorID: {}}
	var out []string
	for len(out) < m.reviewers {
		best := ""
		bestLoad := int64(-1)
		for _, inst := range m.registry.Instances() {
			desc := inst.Descriptor()
			if _, skip := exclude[desc.AgentID]; skip {
				continue
			}
			cap, ok := desc.Capability(ReviewAction)
			if !ok || !cap.Available || inst.AtCapacity() {
				continue
			}
			if best == "" || inst.Load() < bestLoad {
				best = desc.AgentID
				bestLoad = inst.Load()
			}
		}
		if best == "" {
			break
		}
		exclude[best] = struct{}{}
		out = append(out, best)
	}
	return out
}

// runReviewer invokes one reviewer agent and interprets its result as a
// verdict. Reviewer failures count as a revise vote, never an approval.
func (m *Manager) runReviewer(ctx context.Context, reviewerID string, task *Task) Review {
	inst, ok := m.registry.Instance(reviewerID)
	if !ok || !inst.Acquire() {
		return Review{ReviewerID: reviewerID, Verdict: VerdictRevise, Notes: "reviewer unavailable"}
	}
	defer inst.Release()

	reviewCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := inst.Agent().Execute(reviewCtx, ReviewAction, map[string]any{
		"task_id":   task.ID,
		"action":    task.Action,
		"payload":   task.Payload,
		"initiator": task.InitiatorID,
	}, core.UserContext{"user_id": "collab-manager", "permission": core.PermissionReadExecute})
	if err != nil {
		m.logger.Warn("reviewer failed", "task_id", task.ID, "reviewer", reviewerID, "error", err)
		return Review{ReviewerID: reviewerID, Verdict: VerdictRevise, Notes: err.Error()}
	}
	verdict, notes := parseVerdict(result)
	return Review{ReviewerID: reviewerID, Verdict: verdict, Notes: notes}
}

// parseVerdict accepts either a bare verdict string or a map with "verdict"
// and optional "notes". Anything unrecognized is a revise.
func parseVerdict(result *core.Result) (Verdict, string) {
	if result == nil {
		return VerdictRevise, "reviewer returned no result"
	}
	switch v := result.Payload.(type) {
	case string:
		return normalizeVerdict(v), ""
	case map[string]any:
		verdict, _ := v["verdict"].(string)
		notes, _ := v["notes"].(string)
		return normalizeVerdict(verdict), notes
	default:
		return VerdictRevise, fmt.Sprintf("unrecognized review payload %T", result.Payload)
	}
}

func normalizeVerdict(s string) Verdict {
	switch Verdict(s) {
	case VerdictApprove, VerdictRevise, VerdictReject:
		return Verdict(s)
	default:
		return VerdictRevise
	}
}

// transition advances the task state machine. Terminal states never change.
func (m *Manager) transition(task *Task, next TaskStatus) {
	m.tasksMu.Lock()
	defer m.tasksMu.Unlock()
	if task.Status == TaskResolved || task.Status == TaskConflicted {
		return
	}
	task.Status = next
}
