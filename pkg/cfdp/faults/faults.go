// Package faults defines CFDP fault conditions and the per-condition
// disposition table (the "fault handler") that each transaction
// consults when a condition fires. Dispositions are never surfaced as
// a Go error: they route through Disposition and HandlerMap so the
// source/destination handlers can act on them directly (cancel the
// transaction, abandon it, or merely note it and continue).
package faults

import (
	"fmt"

	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// Disposition is the action a fault handler takes in response to a
// condition.
type Disposition int

const (
	// DispositionIgnore notes the condition (an indication still
	// fires) but takes no other action.
	DispositionIgnore Disposition = iota
	// DispositionCancel cancels the transaction: a cancel-flavor
	// EOF or Finished PDU is generated with the firing condition code.
	DispositionCancel
	// DispositionSuspend fires a suspension indication. CFDP suspend/
	// resume sub-states are not implemented here; see DESIGN.md.
	DispositionSuspend
	// DispositionAbandon abandons the transaction immediately,
	// releasing its resources without further PDU exchange.
	DispositionAbandon
)

func (d Disposition) String() string {
	switch d {
	case DispositionIgnore:
		return "Ignore"
	case DispositionCancel:
		return "Cancel"
	case DispositionSuspend:
		return "Suspend"
	case DispositionAbandon:
		return "Abandon"
	default:
		return "Unknown"
	}
}

// Fault is a fired condition, carrying enough context for the handler
// driving the FSM to act and for the user indication interface to
// report it.
type Fault struct {
	Transaction ids.TransactionID
	Condition   pdu.ConditionCode
	Detail      string
}

func (f Fault) Error() string {
	return fmt.Sprintf("cfdp fault: transaction %s condition %v: %s", f.Transaction, f.Condition, f.Detail)
}

// HandlerMap maps each condition code to the disposition a
// transaction should apply when that condition fires, with a
// DefaultDisposition used for any condition not explicitly listed.
// The source and destination handlers take one HandlerMap from their
// Config; host.Manager passes ManagerConfig.FaultHandlers to every
// handler it creates.
type HandlerMap struct {
	Dispositions        map[pdu.ConditionCode]Disposition
	DefaultDisposition Disposition
}

// NewHandlerMap returns a HandlerMap defaulting every condition to
// DispositionCancel, the conservative default CFDP implementations
// commonly ship with.
func NewHandlerMap() *HandlerMap {
	return &HandlerMap{
		Dispositions:       make(map[pdu.ConditionCode]Disposition),
		DefaultDisposition: DispositionCancel,
	}
}

// Set overrides the disposition for a specific condition.
func (h *HandlerMap) Set(code pdu.ConditionCode, d Disposition) {
	h.Dispositions[code] = d
}

// Lookup returns the disposition configured for code, falling back to
// DefaultDisposition when no override is present.
func (h *HandlerMap) Lookup(code pdu.ConditionCode) Disposition {
	if h == nil {
		return DispositionCancel
	}
	if d, ok := h.Dispositions[code]; ok {
		return d
	}
	return h.DefaultDisposition
}
