// Package remoteconfig holds the Remote Entity Configuration Table: a
// per-remote-entity set of protocol parameters (transmission mode,
// timer durations, retry limits) that the
// source and destination handlers consult when starting or continuing
// a transaction. The table itself is a plain in-memory map; durable
// storage is handled by the sibling store subpackage, which hydrates
// a Table at startup and never touches it again during steady-state
// operation.
package remoteconfig

import (
	"fmt"
	"sync"
	"time"

	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// Entry holds the negotiated parameters for exchanging PDUs with one
// remote entity.
type Entry struct {
	RemoteEntity ids.EntityID

	DefaultTransmissionMode pdu.TransmissionMode
	DefaultClosureRequested bool
	DefaultChecksumType     pdu.ChecksumType
	ACKTimeout              time.Duration
	ACKLimit                int
	NAKTimeout              time.Duration
	NAKLimit                int
	KeepAliveInterval       time.Duration
	CheckLimit              int
	InactivityTimeout       time.Duration

	DeferredNAKEnabled  bool
	ImmediateNAKEnabled bool

	// MaxFileSegmentLen bounds the data length of a single File-Data
	// PDU in bytes, independent of the transport's packet size.
	MaxFileSegmentLen int
	// MaxPacketLen bounds the total encoded size of one PDU as seen
	// by the transport; the source handler derives the actual
	// per-segment data length from whichever of the two is smaller.
	MaxPacketLen int

	// FaultHandlers is stored with the entry; the source and
	// destination handlers do not read it and use the HandlerMap from
	// their own Config instead.
	FaultHandlers *faults.HandlerMap
}

// DefaultEntry returns an Entry with conservative defaults for remote,
// suitable for a newly discovered entity before explicit
// configuration is loaded.
func DefaultEntry(remote ids.EntityID) Entry {
	return Entry{
		RemoteEntity:            remote,
		DefaultTransmissionMode: pdu.ModeAcknowledged,
		DefaultClosureRequested: false,
		DefaultChecksumType:     pdu.ChecksumCRC32,
		ACKTimeout:              10 * time.Second,
		ACKLimit:                3,
		NAKTimeout:              10 * time.Second,
		NAKLimit:                3,
		KeepAliveInterval:       30 * time.Second,
		CheckLimit:              3,
		InactivityTimeout:       60 * time.Second,
		DeferredNAKEnabled:      true,
		ImmediateNAKEnabled:     true,
		MaxFileSegmentLen:       1024,
		MaxPacketLen:            1024,
		FaultHandlers:           faults.NewHandlerMap(),
	}
}

// Table is the in-memory, concurrency-safe Remote Entity
// Configuration Table. Handlers call Lookup before starting or
// resuming a transaction with a given remote entity.
type Table struct {
	mu      sync.RWMutex
	entries map[uint64]Entry
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{entries: make(map[uint64]Entry)}
}

// Put inserts or replaces the configuration for entry.RemoteEntity.
func (t *Table) Put(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[entry.RemoteEntity.Value] = entry
}

// Lookup returns the configured Entry for remote, or DefaultEntry(remote)
// with ok=false if none has been configured.
func (t *Table) Lookup(remote ids.EntityID) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[remote.Value]
	if !ok {
		return DefaultEntry(remote), false
	}
	return e, true
}

// Remove deletes the configuration for remote, if present.
func (t *Table) Remove(remote ids.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, remote.Value)
}

// List returns every configured entry, in no particular order.
func (t *Table) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// ErrUnknownEntity is returned by callers that require a configured
// entry and refuse to fall back to defaults.
type ErrUnknownEntity struct {
	Entity ids.EntityID
}

func (e *ErrUnknownEntity) Error() string {
	return fmt.Sprintf("remoteconfig: no configuration for entity %s", e.Entity)
}
