// Package logging provides a thin abstraction over slog so downstream
// packages depend on a minimal Logger interface while callers may plug any
// structured logger. A richer RuntimeLogger adds contextual helpers
// (request, agent, component) and domain-specific helpers for agent
// invocations, routing decisions and peer reviews.
package logging
