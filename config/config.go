// Package config loads the runtime configuration from a TOML file and
// supplies validated defaults when no file is given.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gridironlabs/huddle/contextopt"
)

// Config is the full runtime configuration.
type Config struct {
	Context   ContextConfig   `toml:"context"`
	Memory    MemoryConfig    `toml:"memory"`
	Execution ExecutionConfig `toml:"execution"`
	Collab    CollabConfig    `toml:"collab"`
	SportsAPI SportsAPIConfig `toml:"sports_api"`
	Store     StoreConfig     `toml:"store"`
}

// ContextConfig tunes the context optimizer.
type ContextConfig struct {
	// GlobalTokenBudget is the total allowance role profiles take fractions
	// of. Defaults to 8192.
	GlobalTokenBudget int `toml:"global_token_budget"`
	// CacheTTLSeconds expires cached optimizations. Defaults to 300.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
	// CacheSize bounds cached optimizations. Defaults to 512.
	CacheSize int `toml:"cache_size"`
	// Profiles overrides the built-in role profiles when non-empty.
	Profiles []contextopt.Profile `toml:"profiles"`
}

// MemoryConfig tunes conversation memory.
type MemoryConfig struct {
	// TurnBound caps buffered turns per user. Defaults to 10.
	TurnBound int `toml:"turn_bound"`
	// IdleTimeoutMinutes closes sessions with no activity. Defaults to 30.
	IdleTimeoutMinutes int `toml:"idle_timeout_minutes"`
}

// ExecutionConfig tunes the orchestrator's worker pool.
type ExecutionConfig struct {
	// PoolSize bounds concurrently executing sub-tasks. Defaults to 8.
	PoolSize int `toml:"pool_size"`
	// InvocationTimeoutSeconds bounds each agent invocation. Defaults to 30.
	InvocationTimeoutSeconds int `toml:"invocation_timeout_seconds"`
	// MaxInFlightPerAgent caps concurrent invocations per agent instance.
	// Defaults to 4.
	MaxInFlightPerAgent int `toml:"max_in_flight_per_agent"`
}

// CollabConfig tunes peer review.
type CollabConfig struct {
	// Reviewers per peer-review task. Defaults to 1.
	Reviewers int `toml:"reviewers"`
	// ReviewTimeoutSeconds bounds each reviewer invocation. Defaults to 10.
	ReviewTimeoutSeconds int `toml:"review_timeout_seconds"`
}

// SportsAPIConfig configures the external sports-data client.
type SportsAPIConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	// MinDelayMillis is the minimum delay between calls. Defaults to 1000.
	MinDelayMillis int `toml:"min_delay_millis"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	// SQLitePath is the database file for summaries and knowledge items.
	// Empty keeps everything in process memory.
	SQLitePath string `toml:"sqlite_path"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Context:   ContextConfig{GlobalTokenBudget: 8192, CacheTTLSeconds: 300, CacheSize: 512},
		Memory:    MemoryConfig{TurnBound: 10, IdleTimeoutMinutes: 30},
		Execution: ExecutionConfig{PoolSize: 8, InvocationTimeoutSeconds: 30, MaxInFlightPerAgent: 4},
		Collab:    CollabConfig{Reviewers: 1, ReviewTimeoutSeconds: 10},
		SportsAPI: SportsAPIConfig{MinDelayMillis: 1000},
	}
}

// Load reads and validates the TOML file at path, filling unset fields with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot honor.
func (c *Config) Validate() error {
	if c.Context.GlobalTokenBudget <= 0 {
		return fmt.Errorf("context.global_token_budget must be positive")
	}
	for _, p := range c.Context.Profiles {
		if p.Role == "" {
			return fmt.Errorf("context profile with empty role")
		}
		if p.BudgetFraction <= 0 || p.BudgetFraction > 1 {
			return fmt.Errorf("profile %q: budget_fraction %v outside (0, 1]", p.Role, p.BudgetFraction)
		}
	}
	if c.Memory.TurnBound < 1 {
		return fmt.Errorf("memory.turn_bound must be at least 1")
	}
	if c.Execution.PoolSize < 1 {
		return fmt.Errorf("execution.pool_size must be at least 1")
	}
	if c.Collab.Reviewers < 1 {
		return fmt.Errorf("collab.reviewers must be at least 1")
	}
	return nil
}

// IdleTimeout returns the memory idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Memory.IdleTimeoutMinutes) * time.Minute
}

// InvocationTimeout returns the per-invocation timeout as a duration.
func (c *Config) InvocationTimeout() time.Duration {
	return time.Duration(c.Execution.InvocationTimeoutSeconds) * time.Second
}

// CacheTTL returns the context cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Context.CacheTTLSeconds) * time.Second
}

// ReviewTimeout returns the reviewer timeout as a duration.
func (c *Config) ReviewTimeout() time.Duration {
	return time.Duration(c.Collab.ReviewTimeoutSeconds) * time.Second
}

// MinAPIDelay returns the sports API minimum delay as a duration.
func (c *Config) MinAPIDelay() time.Duration {
	return time.Duration(c.SportsAPI.MinDelayMillis) * time.Millisecond
}

// ProfileMap converts the configured profiles into the optimizer's map form.
func (c *Config) ProfileMap() map[string]contextopt.Profile {
	if len(c.Context.Profiles) == 0 {
		return contextopt.DefaultProfiles()
	}
	out := make(map[string]contextopt.Profile, len(c.Context.Profiles))
	for _, p := range c.Context.Profiles {
		out[p.Role] = p
	}
	return out
}
