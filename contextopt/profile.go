// Package contextopt reduces a raw context bundle to the slice a user role
// is entitled to see, under a role-specific token budget. Profiles are
// defined at process start and read-only thereafter; optimization results
// are cached with a TTL so repeated requests for the same (role, content)
// pair skip recomputation.
package contextopt

// Profile describes what one user role may see and how much of the global
// token budget it may spend.
type Profile struct {
	// Role is the profile key.
	Role string `toml:"role"`
	// BudgetFraction is the share of the global token budget this role may
	// use, in (0, 1].
	BudgetFraction float64 `toml:"budget_fraction"`
	// DataScope labels the breadth of data visible to the role.
	DataScope string `toml:"data_scope"`
	// FocusAreas is priority-ordered, highest priority first. Truncation
	// drops the lowest-priority areas first and never drops the first one.
	FocusAreas []string `toml:"focus_areas"`
	// VisibleResources names the notebook/model/feature resources the role
	// may see. An empty list means every resource is visible.
	VisibleResources []string `toml:"visible_resources"`
}

func (p Profile) visible(name string) bool {
	if len(p.VisibleResources) == 0 {
		return true
	}
	for _, r := range p.VisibleResources {
		if r == name {
			return true
		}
	}
	return false
}

// DefaultProfiles returns the built-in role set. The "public" profile is the
// most restrictive and doubles as the fallback for unrecognized roles.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"admin": {
			Role:           "admin",
			BudgetFraction: 1.0,
			DataScope:      "full",
			FocusAreas:     []string{"predictions", "models", "player_stats", "team_stats", "schedules", "operations"},
		},
		"analyst": {
			Role:           "analyst",
			BudgetFraction: 0.6,
			DataScope:      "analytics",
			FocusAreas:     []string{"predictions", "models", "player_stats", "team_stats"},
		},
		"production": {
			Role:           "production",
			BudgetFraction: 0.25,
			DataScope:      "serving",
			FocusAreas:     []string{"predictions", "schedules"},
		},
		"coach": {
			Role:           "coach",
			BudgetFraction: 0.4,
			DataScope:      "team",
			FocusAreas:     []string{"team_stats", "player_stats", "schedules"},
		},
		"public": {
			Role:           "public",
			BudgetFraction: 0.1,
			DataScope:      "public",
			FocusAreas:     []string{"schedules"},
		},
	}
}

// mostRestrictive picks the profile with the smallest budget fraction,
// breaking ties by role name for determinism.
func mostRestrictive(profiles map[string]Profile) Profile {
	var best Profile
	first := true
	for _, p := range profiles {
		if first || p.BudgetFraction < best.BudgetFraction ||
			(p.BudgetFraction == best.BudgetFraction && p.Role < best.Role) {
			best = p
			first = false
		}
	}
	return best
}
