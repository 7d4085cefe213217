package orchestrator

import (
	"time"

	"github.com/gridironlabs/huddle/core"
)

// subtaskResult is the outcome of one executed sub-task.
type subtaskResult struct {
	task       Subtask
	agentID    string
	agentType  string
	permission core.PermissionLevel
	result     *core.Result
	err        error
	duration   time.Duration
	// reviewConflicted marks a result whose peer review ended CONFLICTED;
	// the result is kept but the response reports the disagreement.
	reviewConflicted bool
}

// synthesize folds sub-task outcomes into the single response the caller
// receives. A request fails only when every sub-task failed; any success
// yields Success=true with the failures enumerated alongside.
//
// When two successful sub-tasks answered the same action with different
// payloads, the higher-confidence result wins; on a confidence tie the
// result from the higher-privileged agent wins; a full tie is surfaced as
// a conflict with both payloads kept.
func synthesize(req *core.AgentRequest, results []subtaskResult, started time.Time) *core.AgentResponse {
	resp := &core.AgentResponse{
		RequestID: req.ID,
		Duration:  time.Since(started),
	}

	var successes []subtaskResult
	for _, r := range results {
		if r.err != nil {
			resp.FailedSubtasks = append(resp.FailedSubtasks, core.SubtaskFailure{
				Action:  r.task.Action,
				AgentID: r.agentID,
				Kind:    core.KindOf(r.err),
				Message: r.err.Error(),
			})
			continue
		}
		successes = append(successes, r)
	}

	if len(successes) == 0 {
		resp.Success = false
		if len(resp.FailedSubtasks) > 0 {
			resp.Error = resp.FailedSubtasks[0].Message
			resp.AgentID = resp.FailedSubtasks[0].AgentID
		} else {
			resp.Error = "no sub-task produced a result"
		}
		return resp
	}

	resp.Success = true
	winners, conflicted := resolveConflicts(successes)
	resp.Conflicted = conflicted

	if len(winners) == 1 && len(results) == 1 {
		resp.Result = winners[0].result.Payload
		resp.AgentID = winners[0].agentID
		return resp
	}

	payload := make(map[string]any, len(winners))
	for _, w := range winners {
		payload[w.task.Name] = w.result.Payload
	}
	resp.Result = payload
	resp.AgentID = "orchestrator"
	return resp
}

// resolveConflicts reduces same-action duplicates to a single winner where
// the policy can decide, and reports whether any group stayed unresolved.
func resolveConflicts(successes []subtaskResult) ([]subtaskResult, bool) {
	byAction := make(map[string][]subtaskResult)
	var order []string
	for _, s := range successes {
		if _, ok := byAction[s.task.Action]; !ok {
			order = append(order, s.task.Action)
		}
		byAction[s.task.Action] = append(byAction[s.task.Action], s)
	}

	var out []subtaskResult
	conflicted := false
	for _, action := range order {
		group := byAction[action]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		winner := group[0]
		tie := false
		for _, s := range group[1:] {
			switch {
			case s.result.Confidence > winner.result.Confidence:
				winner, tie = s, false
			case s.result.Confidence < winner.result.Confidence:
			case s.permission > winner.permission:
				winner, tie = s, false
			case s.permission < winner.permission:
			default:
				tie = true
			}
		}
		if tie {
			conflicted = true
			out = append(out, group...)
			continue
		}
		out = append(out, winner)
	}
	return out, conflicted
}
