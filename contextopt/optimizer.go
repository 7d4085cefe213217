package contextopt

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/gridironlabs/huddle/logging"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Resource is one piece of raw contextual content: a notebook extract, a
// model card, a feature description. FocusArea ties it to a profile's
// priority ordering.
type Resource struct {
	Name      string `json:"name"`
	FocusArea string `json:"focus_area"`
	Content   string `json:"content"`
}

// Bundle is the raw context handed to the optimizer.
type Bundle struct {
	Resources []Resource `json:"resources"`
}

// Optimized is the reduced bundle that fits the role's token budget.
type Optimized struct {
	Role      string     `json:"role"`
	DataScope string     `json:"data_scope"`
	Resources []Resource `json:"resources"`
	// TokenCount is the estimated token spend of Resources.
	TokenCount int `json:"token_count"`
	// Budget is the absolute token budget the role was granted.
	Budget int `json:"budget"`
	// Truncated reports whether any content was dropped or cut.
	Truncated bool `json:"truncated"`
}

// Options configures an Optimizer.
type Options struct {
	// GlobalBudget is the total token allowance profiles take fractions of.
	GlobalBudget int
	// Profiles maps role name to profile. Defaults to DefaultProfiles.
	Profiles map[string]Profile
	// CacheSize bounds the result cache entries.
	CacheSize int
	// CacheTTL expires cached results.
	CacheTTL time.Duration
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Optimizer reduces raw bundles per role under a token budget, caching
// results keyed by (role, content hash). Reads hit the cache without
// blocking writers; concurrent first computations for the same key are
// collapsed through singleflight so the work happens once.
type Optimizer struct {
	globalBudget int
	profiles     map[string]Profile
	fallback     Profile
	cache        *lru.LRU[string, *Optimized]
	group        singleflight.Group
	logger       logging.Logger
}

// New creates an Optimizer with sensible defaults (8k global budget, 512
// cache entries, 5 minute TTL).
func New(optFns ...func(o *Options)) *Optimizer {
	opts := Options{
		GlobalBudget: 8192,
		Profiles:     DefaultProfiles(),
		CacheSize:    512,
		CacheTTL:     5 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.Profiles) == 0 {
		opts.Profiles = DefaultProfiles()
	}
	return &Optimizer{
		globalBudget: opts.GlobalBudget,
		profiles:     opts.Profiles,
		fallback:     mostRestrictive(opts.Profiles),
		cache:        lru.NewLRU[string, *Optimized](opts.CacheSize, nil, opts.CacheTTL),
		logger:       logging.OrNoOp(opts.Logger),
	}
}

// Profile returns the profile for role, falling back to the most restrictive
// profile for unrecognized roles.
func (o *Optimizer) Profile(role string) Profile {
	if p, ok := o.profiles[role]; ok {
		return p
	}
	return o.fallback
}

// Load produces the reduced context for role. It never fails: even when the
// highest-priority focus area alone exceeds the budget, its content is
// truncated rather than dropped.
func (o *Optimizer) Load(role string, raw Bundle) *Optimized {
	key := o.cacheKey(role, raw)
	if cached, ok := o.cache.Get(key); ok {
		return cached
	}
	v, _, _ := o.group.Do(key, func() (any, error) {
		reduced := o.reduce(o.Profile(role), raw)
		o.cache.Add(key, reduced)
		return reduced, nil
	})
	return v.(*Optimized)
}

func (o *Optimizer) cacheKey(role string, raw Bundle) string {
	h := sha256.New()
	h.Write([]byte(role))
	for _, r := range raw.Resources {
		h.Write([]byte{0})
		h.Write([]byte(r.Name))
		h.Write([]byte{0})
		h.Write([]byte(r.FocusArea))
		h.Write([]byte{0})
		h.Write([]byte(r.Content))
	}
	return role + ":" + hex.EncodeToString(h.Sum(nil))
}

// reduce applies the three-step pipeline: visibility filter, focus-area
// priority ordering, then truncation until the estimate fits the budget.
func (o *Optimizer) reduce(profile Profile, raw Bundle) *Optimized {
	budget := int(profile.BudgetFraction * float64(o.globalBudget))
	out := &Optimized{Role: profile.Role, DataScope: profile.DataScope, Budget: budget}

	priority := make(map[string]int, len(profile.FocusAreas))
	for i, area := range profile.FocusAreas {
		priority[area] = i
	}

	var kept []Resource
	for _, r := range raw.Resources {
		if !profile.visible(r.Name) {
			out.Truncated = true
			continue
		}
		if _, known := priority[r.FocusArea]; !known {
			// Focus areas outside the profile rank below every listed one.
			out.Truncated = true
			continue
		}
		kept = append(kept, r)
	}
	// Stable order: by focus-area priority, then name, so identical inputs
	// reduce identically regardless of bundle ordering.
	sort.SliceStable(kept, func(i, j int) bool {
		pi, pj := priority[kept[i].FocusArea], priority[kept[j].FocusArea]
		if pi != pj {
			return pi < pj
		}
		return kept[i].Name < kept[j].Name
	})

	total := 0
	for _, r := range kept {
		total += EstimateTokens(r.Content)
	}

	// Drop whole lowest-priority areas until we fit, never the first area.
	for total > budget && len(kept) > 0 {
		lowest := priority[kept[len(kept)-1].FocusArea]
		if lowest == 0 {
			break
		}
		cut := len(kept)
		for cut > 0 && priority[kept[cut-1].FocusArea] == lowest {
			cut--
		}
		for _, r := range kept[cut:] {
			total -= EstimateTokens(r.Content)
		}
		kept = kept[:cut]
		out.Truncated = true
	}

	// Degenerate case: the highest-priority area alone exceeds the budget.
	// Degrade gracefully by truncating content, last resource first.
	for i := len(kept) - 1; i >= 0 && total > budget; i-- {
		tokens := EstimateTokens(kept[i].Content)
		allowance := budget - (total - tokens)
		if allowance < 0 {
			allowance = 0
		}
		kept[i].Content = truncateToTokens(kept[i].Content, allowance)
		total = total - tokens + EstimateTokens(kept[i].Content)
		out.Truncated = true
	}

	out.Resources = kept
	out.TokenCount = total
	o.logger.Debug("context reduced", "role", profile.Role, "budget", budget, "tokens", total, "resources", len(kept))
	return out
}
