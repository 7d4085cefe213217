package memory

import (
	"github.com/gridironlabs/huddle/core"
)

// Continuity keys EnhanceContext merges into the base context.
const (
	KeyRecentTurns     = "recent_turns"
	KeyRelevantSummary = "relevant_summary"
	KeyPreferences     = "preferences"
)

// EnhanceContext merges the user's conversational memory into baseContext
// and returns the enhanced copy. It is idempotent and side-effect-free: it
// only reads memory and never mutates baseContext. A user with no memory
// yields baseContext plus empty continuity entries.
func (m *Memory) EnhanceContext(userID string, baseContext map[string]any) map[string]any {
	out := make(map[string]any, len(baseContext)+3)
	for k, v := range baseContext {
		out[k] = v
	}

	sh := m.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	st := sh.users[userID]
	if st == nil {
		return out
	}

	turns := st.ring.turns()
	if len(turns) > 0 {
		out[KeyRecentTurns] = turns
	}

	current := topTopics(st.topicCounts, m.topicLimit)
	if best, ok := bestSummary(st.summaries, current); ok {
		out[KeyRelevantSummary] = best
	}

	out[KeyPreferences] = derivePreferences(st, current)
	return out
}

// bestSummary picks the past summary with the greatest topic overlap against
// the current session's topics. Zero overlap yields nothing.
func bestSummary(summaries []SessionSummary, current []string) (SessionSummary, bool) {
	bestScore := 0
	var best SessionSummary
	for _, s := range summaries {
		if score := topicOverlap(s.Topics, current); score > bestScore {
			bestScore = score
			best = s
		}
	}
	return best, bestScore > 0
}

// derivePreferences estimates the user's expertise trend from the sequence
// of detected roles and their preferred topics from frequency across turns
// and past summaries.
func derivePreferences(st *userState, current []string) Preferences {
	counts := make(map[string]int, len(current))
	for topic, n := range st.topicCounts {
		counts[topic] = n
	}
	for _, s := range st.summaries {
		for _, topic := range s.Topics {
			counts[topic]++
		}
	}

	return Preferences{
		Expertise:       expertiseTrend(st.roles),
		PreferredTopics: topTopics(counts, 3),
	}
}

// expertiseTrend maps the most recent run of detected roles to an expertise
// estimate. Later roles weigh more than earlier ones so a user "growing
// into" a privileged role trends upward.
func expertiseTrend(roles []string) string {
	if len(roles) == 0 {
		return "beginner"
	}
	score, weight := 0, 0
	for i, role := range roles {
		w := i + 1
		weight += w
		switch core.RolePermission(role) {
		case core.PermissionAdmin, core.PermissionReadExecuteWrite:
			score += 2 * w
		case core.PermissionReadExecute:
			score += w
		}
	}
	switch avg := float64(score) / float64(weight); {
	case avg >= 1.5:
		return "advanced"
	case avg >= 0.5:
		return "intermediate"
	default:
		return "beginner"
	}
}
