package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds transaction-scoped logging context carried through
// a CFDP handler's Tick/Deliver call chain and the control-plane API's
// request handling.
type LogContext struct {
	TraceID       string    // OpenTelemetry trace ID
	SpanID        string    // OpenTelemetry span ID
	TransactionID string    // "entity:sequence"
	Role          string    // "source" or "destination"
	RemoteEntity  string    // remote entity ID for this transaction
	Step          string    // current FSM state name
	StartTime     time.Time // for duration calculation
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

// NewLogContext creates a new LogContext for a transaction.
func NewLogContext(transactionID, role string) *LogContext {
	return &LogContext{
		TransactionID: transactionID,
		Role:          role,
		StartTime:     time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:       lc.TraceID,
		SpanID:        lc.SpanID,
		TransactionID: lc.TransactionID,
		Role:          lc.Role,
		RemoteEntity:  lc.RemoteEntity,
		Step:          lc.Step,
		StartTime:     lc.StartTime,
	}
}

// WithStep returns a copy with the FSM step set
func (lc *LogContext) WithStep(step string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Step = step
	}
	return clone
}

// WithRemoteEntity returns a copy with the remote entity set
func (lc *LogContext) WithRemoteEntity(remoteEntity string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.RemoteEntity = remoteEntity
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
