// Package huddle provides a high-level façade over the orchestration core
// (registry, router, context optimizer, conversation memory, collaboration)
// enabling rapid construction of multi-agent sports-analytics systems. Most
// applications interact with this package by:
//  1. Creating a Huddle via New() (optionally overriding default in-memory services)
//  2. Registering agent types and spawning instances
//  3. Submitting requests with Submit or the Ask convenience helper
//
// The façade delegates coordination to orchestrator.Orchestrator while
// keeping setup ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a SQLite
// store, a structured logger and a Prometheus registerer.
package huddle

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridironlabs/huddle/collab"
	"github.com/gridironlabs/huddle/config"
	"github.com/gridironlabs/huddle/contextopt"
	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/logging"
	"github.com/gridironlabs/huddle/memory"
	"github.com/gridironlabs/huddle/model"
	"github.com/gridironlabs/huddle/orchestrator"
	"github.com/gridironlabs/huddle/registry"
	"github.com/gridironlabs/huddle/router"
	"github.com/gridironlabs/huddle/sportsdata"
	"github.com/gridironlabs/huddle/store"
)

// Options configures the Huddle instance.
type Options struct {
	// Config supplies tuning knobs (budgets, timeouts, pool sizes).
	// Defaults to config.Default().
	Config *config.Config

	// Store persists session summaries and knowledge items. When nil, the
	// config's store.sqlite_path is opened if set, otherwise an in-memory
	// implementation is used.
	Store store.Store

	// Summarizer produces session digests. Optional; without one, digests
	// fall back to a heuristic rendering.
	Summarizer model.Summarizer

	// ContextBundle is the ambient content optimized into every request.
	ContextBundle contextopt.Bundle

	// MetricsRegisterer receives the orchestrator collectors. Nil leaves
	// them unregistered.
	MetricsRegisterer prometheus.Registerer

	// ReapInterval is how often idle sessions are swept. 0 disables the
	// background reaper.
	ReapInterval time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Huddle is the high-level façade aggregating the coordination components.
type Huddle struct {
	opts     Options
	registry *registry.Registry
	memory   *memory.Memory
	collab   *collab.Manager
	orch     *orchestrator.Orchestrator
	sports   *sportsdata.Client

	reapStop  chan struct{}
	closeOnce sync.Once
}

// New creates a Huddle instance with optional overrides. Any unset service
// is initialized from config, falling back to in-memory implementations.
func New(optFns ...func(o *Options)) *Huddle {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	cfg := opts.Config
	logger := logging.OrNoOp(opts.Logger)

	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore()
		if cfg.Store.SQLitePath != "" {
			if s, err := store.OpenSQLite(cfg.Store.SQLitePath); err != nil {
				logger.Error("sqlite store unavailable, keeping memory only",
					"path", cfg.Store.SQLitePath, "error", err)
			} else {
				opts.Store = s
			}
		}
	}

	var sports *sportsdata.Client
	if cfg.SportsAPI.BaseURL != "" {
		sports = sportsdata.NewClient(cfg.SportsAPI.BaseURL, func(o *sportsdata.Options) {
			o.APIKey = cfg.SportsAPI.APIKey
			o.MinDelay = cfg.MinAPIDelay()
			o.Logger = logger
		})
	}

	reg := registry.New(func(o *registry.Options) {
		o.MaxInFlightPerAgent = int64(cfg.Execution.MaxInFlightPerAgent)
		o.Logger = logger
	})

	mem := memory.New(func(o *memory.Options) {
		o.TurnBound = cfg.Memory.TurnBound
		o.IdleTimeout = cfg.IdleTimeout()
		o.Store = opts.Store
		o.Summarizer = opts.Summarizer
		o.Logger = logger
	})

	opt := contextopt.New(func(o *contextopt.Options) {
		o.GlobalBudget = cfg.Context.GlobalTokenBudget
		o.Profiles = cfg.ProfileMap()
		o.CacheSize = cfg.Context.CacheSize
		o.CacheTTL = cfg.CacheTTL()
		o.Logger = logger
	})

	mgr := collab.NewManager(reg, func(o *collab.Options) {
		o.Reviewers = cfg.Collab.Reviewers
		o.ReviewTimeout = cfg.ReviewTimeout()
		o.Store = opts.Store
		o.Logger = logger
	})

	rt := router.New(reg, func(o *router.Options) {
		o.Logger = logger
	})

	orch := orchestrator.New(rt, func(o *orchestrator.Options) {
		o.Memory = mem
		o.Optimizer = opt
		o.Collab = mgr
		o.ContextBundle = opts.ContextBundle
		o.PoolSize = cfg.Execution.PoolSize
		o.InvocationTimeout = cfg.InvocationTimeout()
		o.Metrics = orchestrator.NewMetrics(opts.MetricsRegisterer)
		o.Logger = logger
	})

	h := &Huddle{
		opts:     opts,
		registry: reg,
		memory:   mem,
		collab:   mgr,
		orch:     orch,
		sports:   sports,
	}
	if opts.ReapInterval > 0 {
		h.reapStop = make(chan struct{})
		go h.reapLoop(opts.ReapInterval, h.reapStop)
	}
	return h
}

// RegisterAgentType makes an agent type constructible.
func (h *Huddle) RegisterAgentType(agentType string, ctor registry.Constructor) error {
	return h.registry.Register(agentType, ctor)
}

// Spawn instantiates one agent of a registered type.
func (h *Huddle) Spawn(agentType, agentID string) (*registry.Instance, error) {
	return h.registry.Create(agentType, agentID)
}

// Submit runs one request end to end and always returns a well-formed
// response; errors surface inside the response, never alongside it.
func (h *Huddle) Submit(ctx context.Context, req *core.AgentRequest) *core.AgentResponse {
	return h.orch.Submit(ctx, req)
}

// Ask is a convenience wrapper that builds and submits a request.
func (h *Huddle) Ask(ctx context.Context, action string, params map[string]any, userCtx core.UserContext) *core.AgentResponse {
	return h.orch.Submit(ctx, core.NewRequest(action, params, userCtx))
}

// Registry exposes the capability registry for inspection.
func (h *Huddle) Registry() *registry.Registry { return h.registry }

// Memory exposes the conversation memory.
func (h *Huddle) Memory() *memory.Memory { return h.memory }

// Collab exposes the collaboration manager.
func (h *Huddle) Collab() *collab.Manager { return h.collab }

// SportsData exposes the client built from the [sports_api] configuration;
// nil when no base URL is configured.
func (h *Huddle) SportsData() *sportsdata.Client { return h.sports }

// EndSession closes a user's active session and returns its summary.
func (h *Huddle) EndSession(ctx context.Context, userID string) (*memory.SessionSummary, error) {
	return h.memory.EndSession(ctx, userID)
}

// Close stops the background reaper and releases the store. Safe to call
// more than once.
func (h *Huddle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if h.reapStop != nil {
			close(h.reapStop)
		}
		if h.opts.Store != nil {
			err = h.opts.Store.Close()
		}
	})
	return err
}

func (h *Huddle) reapLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.memory.ReapIdle(context.Background())
		case <-stop:
			return
		}
	}
}
