package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface for huddle. Users can provide
// their own implementation or use the built-in slog adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NoOpLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// OrNoOp returns l, substituting a NoOpLogger when l is nil so call sites
// never have to nil-check.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// RuntimeConfig configures construction of a RuntimeLogger.
type RuntimeConfig struct {
	Level     slog.Level
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultRuntimeConfig returns a baseline JSON info-level configuration.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// RuntimeLogger wraps slog adding contextual cloning helpers and domain
// convenience methods. It is cheap to copy via the With* methods.
type RuntimeLogger struct {
	logger    *slog.Logger
	component string
	requestID string
	agentID   string
}

// NewRuntimeLogger builds a RuntimeLogger from a config (or defaults if nil).
func NewRuntimeLogger(cfg *RuntimeConfig) *RuntimeLogger {
	if cfg == nil {
		cfg = DefaultRuntimeConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &RuntimeLogger{logger: slog.New(handler), component: cfg.Component}
}

// WithComponent sets the logical component (router, orchestrator, memory, ...).
func (l *RuntimeLogger) WithComponent(c string) *RuntimeLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithRequest attaches request and agent identifiers.
func (l *RuntimeLogger) WithRequest(requestID, agentID string) *RuntimeLogger {
	nl := *l
	nl.requestID = requestID
	nl.agentID = agentID
	return &nl
}

func (l *RuntimeLogger) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+3)
	if l.component != "" {
		out = append(out, slog.String("component", l.component))
	}
	if l.requestID != "" {
		out = append(out, slog.String("request_id", l.requestID))
	}
	if l.agentID != "" {
		out = append(out, slog.String("agent_id", l.agentID))
	}
	return append(out, extra...)
}

func (l *RuntimeLogger) log(level slog.Level, msg string, args ...any) {
	l.logger.LogAttrs(context.Background(), level, msg, append(l.attrs(), argsToAttrs(args)...)...)
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

// Debug logs at debug level.
func (l *RuntimeLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *RuntimeLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *RuntimeLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *RuntimeLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogAgentCall records execution details for one agent invocation.
func (l *RuntimeLogger) LogAgentCall(agentID, action string, dur time.Duration, err error) {
	attrs := l.attrs(
		slog.String("agent_id", agentID),
		slog.String("action", action),
		slog.Duration("duration", dur),
		slog.Bool("success", err == nil),
	)
	level := slog.LevelInfo
	msg := "agent invocation completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "agent invocation failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogRouteDecision records which agent was selected for an action and how
// many candidates were considered.
func (l *RuntimeLogger) LogRouteDecision(action, agentID string, candidates int) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "route decision",
		l.attrs(
			slog.String("action", action),
			slog.String("agent_id", agentID),
			slog.Int("candidates", candidates),
		)...)
}

// LogPeerReview records the outcome of a collaboration round-trip.
func (l *RuntimeLogger) LogPeerReview(taskID, status string, reviewers int) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "peer review resolved",
		l.attrs(
			slog.String("task_id", taskID),
			slog.String("status", status),
			slog.Int("reviewers", reviewers),
		)...)
}
