package orchestrator

import (
	"github.com/gridironlabs/huddle/core"
)

// Subtask is one unit of an execution plan. DependsOn names other sub-tasks
// whose results must exist before this one runs; the dependency's result is
// injected into Params under "dependency_result".
type Subtask struct {
	Name      string
	Action    string
	Params    map[string]any
	AgentType string
	DependsOn []string
}

// planFor derives the execution plan for a request. A request that carries
// a "subtasks" parameter is a composite: each entry becomes one Subtask.
// Anything else is a single-step plan built from the request itself.
func planFor(req *core.AgentRequest) ([]Subtask, error) {
	raw, ok := req.Params["subtasks"]
	if !ok {
		return []Subtask{{
			Name:      req.Action,
			Action:    req.Action,
			Params:    req.Params,
			AgentType: req.AgentType,
		}}, nil
	}

	entries, ok := raw.([]any)
	if !ok || len(entries) == 0 {
		return nil, core.NewError(core.KindValidation, "subtasks must be a non-empty list")
	}

	plan := make([]Subtask, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, core.NewError(core.KindValidation, "subtask %d is not an object", i)
		}
		st := Subtask{
			Name:      stringField(m, "name"),
			Action:    stringField(m, "action"),
			AgentType: stringField(m, "agent_type"),
		}
		if st.Action == "" {
			return nil, core.NewError(core.KindValidation, "subtask %d has no action", i)
		}
		if st.Name == "" {
			st.Name = st.Action
		}
		if _, dup := seen[st.Name]; dup {
			return nil, core.NewError(core.KindValidation, "duplicate subtask name %q", st.Name)
		}
		seen[st.Name] = struct{}{}
		if p, ok := m["params"].(map[string]any); ok {
			st.Params = p
		}
		switch deps := m["depends_on"].(type) {
		case nil:
		case string:
			st.DependsOn = []string{deps}
		case []string:
			st.DependsOn = deps
		case []any:
			for _, d := range deps {
				name, ok := d.(string)
				if !ok {
					return nil, core.NewError(core.KindValidation, "subtask %q has a non-string dependency", st.Name)
				}
				st.DependsOn = append(st.DependsOn, name)
			}
		default:
			return nil, core.NewError(core.KindValidation, "subtask %q has a malformed depends_on", st.Name)
		}
		plan = append(plan, st)
	}

	for _, st := range plan {
		for _, dep := range st.DependsOn {
			if _, ok := seen[dep]; !ok {
				return nil, core.NewError(core.KindValidation, "subtask %q depends on unknown %q", st.Name, dep)
			}
			if dep == st.Name {
				return nil, core.NewError(core.KindValidation, "subtask %q depends on itself", st.Name)
			}
		}
	}
	if cyclic(plan) {
		return nil, core.NewError(core.KindValidation, "subtask dependencies form a cycle")
	}
	return plan, nil
}

// cyclic reports whether the dependency graph contains a cycle, by
// iteratively peeling sub-tasks whose dependencies are all resolved.
func cyclic(plan []Subtask) bool {
	resolved := make(map[string]struct{}, len(plan))
	remaining := len(plan)
	for remaining > 0 {
		progressed := false
		for _, st := range plan {
			if _, done := resolved[st.Name]; done {
				continue
			}
			ready := true
			for _, dep := range st.DependsOn {
				if _, done := resolved[dep]; !done {
					ready = false
					break
				}
			}
			if ready {
				resolved[st.Name] = struct{}{}
				remaining--
				progressed = true
			}
		}
		if !progressed {
			return true
		}
	}
	return false
}

// waves splits the plan into dependency layers: wave n holds every sub-task
// whose dependencies were all placed in waves 0..n-1. planFor guarantees
// the graph is acyclic so this terminates.
func waves(plan []Subtask) [][]Subtask {
	placed := make(map[string]struct{}, len(plan))
	var out [][]Subtask
	remaining := plan
	for len(remaining) > 0 {
		var wave, next []Subtask
		for _, st := range remaining {
			ready := true
			for _, dep := range st.DependsOn {
				if _, ok := placed[dep]; !ok {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, st)
			} else {
				next = append(next, st)
			}
		}
		for _, st := range wave {
			placed[st.Name] = struct{}{}
		}
		out = append(out, wave)
		remaining = next
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
