package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds the per-operation fields that *Ctx log calls prepend.
type LogContext struct {
	TraceID   string // OpenTelemetry trace ID
	SpanID    string // OpenTelemetry span ID
	Repo      string // Repository identifier (org/name)
	Revision  string // Requested revision (branch, tag or commit)
	Shard     string // Checkpoint shard filename
	StartTime time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a repository revision.
func NewLogContext(repo, revision string) *LogContext {
	return &LogContext{
		Repo:      repo,
		Revision:  revision,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithShard returns a copy with the shard set
func (lc *LogContext) WithShard(shard string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Shard = shard
	}
	return c
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}

// ShardContext derives a context whose LogContext carries shard. A context
// without a LogContext gets a fresh one holding only the shard.
func ShardContext(ctx context.Context, shard string) context.Context {
	lc := FromContext(ctx)
	if lc == nil {
		return WithContext(ctx, &LogContext{Shard: shard, StartTime: time.Now()})
	}
	return WithContext(ctx, lc.WithShard(shard))
}
