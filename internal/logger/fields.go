package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across a CFDP entity.
// Use these keys consistently so log aggregation and querying works
// the same way across the source handler, destination handler, host
// layer and control-plane API.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// CFDP Transaction Identity
	// ========================================================================
	KeyTransactionID = "transaction_id" // entity:sequence
	KeyEntityID      = "entity_id"      // remote or local entity ID
	KeyRole          = "role"           // "source" or "destination"
	KeyDirection     = "direction"      // PDU flow direction

	// ========================================================================
	// Protocol Data Units
	// ========================================================================
	KeyPDUType       = "pdu_type"       // Metadata, FileData, EOF, ACK, NAK, ...
	KeyConditionCode = "condition_code" // CFDP condition code
	KeyOffset        = "offset"         // file data segment offset
	KeyLength        = "length"         // file data segment length

	// ========================================================================
	// State machine
	// ========================================================================
	KeyState     = "state"     // FSM state name
	KeyEvent     = "event"     // FSM triggering event
	KeyNextState = "next_state"

	// ========================================================================
	// Filestore
	// ========================================================================
	KeyPath      = "path"       // filestore path
	KeySize      = "size"       // file size in bytes
	KeyStoreType = "store_type" // localfs, badger, s3

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"

	// ========================================================================
	// Control Plane
	// ========================================================================
	KeyRequestID   = "request_id"
	KeyRemoteAddr  = "remote_addr"
	KeyHTTPMethod  = "http_method"
	KeyHTTPPath    = "http_path"
	KeyHTTPStatus  = "http_status"
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// TransactionID returns a slog.Attr for a CFDP transaction ID.
func TransactionID(id string) slog.Attr {
	return slog.String(KeyTransactionID, id)
}

// EntityID returns a slog.Attr for a CFDP entity ID.
func EntityID(id string) slog.Attr {
	return slog.String(KeyEntityID, id)
}

// Role returns a slog.Attr for the handler role (source/destination).
func Role(role string) slog.Attr {
	return slog.String(KeyRole, role)
}

// PDUType returns a slog.Attr for the PDU type name.
func PDUType(t string) slog.Attr {
	return slog.String(KeyPDUType, t)
}

// ConditionCode returns a slog.Attr for a CFDP condition code.
func ConditionCode(code int) slog.Attr {
	return slog.Int(KeyConditionCode, code)
}

// Offset returns a slog.Attr for a file data segment offset.
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Length returns a slog.Attr for a file data segment length.
func Length(n int) slog.Attr {
	return slog.Int(KeyLength, n)
}

// State returns a slog.Attr for the current FSM state.
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Path returns a slog.Attr for a filestore path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Size returns a slog.Attr for a file size.
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// StoreType returns a slog.Attr for the filestore backend type.
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry count.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// RequestID returns a slog.Attr for an HTTP request ID.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}
