// Package host wires the Source and Destination handler state
// machines (pkg/cfdp/source, pkg/cfdp/dest) into a running CFDP
// entity: something that owns a local entity ID, holds one Handler
// per active transaction, and drives every Handler's outbound queue
// out over a Transport and every inbound PDU into the right Handler
// via pkg/cfdp/classify.
//
// Manager is a single local entity. Fleet runs several Managers
// concurrently — the shape a process takes when it terminates CFDP
// traffic for more than one local entity ID at once.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/internal/metrics"
	"github.com/cfdpgo/entity/pkg/cfdp/classify"
	"github.com/cfdpgo/entity/pkg/cfdp/dest"
	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/source"
	"github.com/cfdpgo/entity/pkg/cfdp/timer"
	"github.com/cfdpgo/entity/pkg/cfdp/user"
)

// Errors returned by Manager's public methods.
var (
	ErrNoTransport        = errors.New("host: manager has no transport configured")
	ErrUnknownTransaction = errors.New("host: no handler owns this transaction")
	ErrFleetUnknownEntity = errors.New("host: no manager registered for local entity")
)

// Transport delivers one outbound PDU to its destination entity. A
// Manager never encodes or transmits PDUs itself; Transport is the
// seam where the wire codec and network layer plug in.
type Transport interface {
	Send(ctx context.Context, destination ids.EntityID, p pdu.PDU) error
}

// SequenceCounter is the default source.SequenceNumberProvider: a
// process-local monotonically increasing counter at a fixed bit
// width. Entities that must survive a restart without reusing
// sequence numbers should supply their own persisted implementation
// instead.
type SequenceCounter struct {
	width int
	mu    sync.Mutex
	next  uint64
}

// NewSequenceCounter returns a counter that draws sequence numbers at
// bitWidth (8, 16, or 32), starting from 1.
func NewSequenceCounter(bitWidth int) *SequenceCounter {
	return &SequenceCounter{width: bitWidth, next: 1}
}

// Next implements source.SequenceNumberProvider.
func (c *SequenceCounter) Next() (uint64, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next
	c.next++
	return v, c.width, nil
}

// ManagerConfig supplies a Manager with the components shared by every
// Handler it creates. Each field mirrors the corresponding field on
// source.Config/dest.Config; Manager constructs one Handler of each
// kind per transaction from this shared configuration rather than
// requiring a caller to assemble source.Config/dest.Config by hand.
type ManagerConfig struct {
	LocalEntityID ids.EntityID
	RemoteConfigs *remoteconfig.Table
	Filestore     filestore.Filestore
	Indications   user.Indications
	Timers        timer.Provider
	FaultHandlers *faults.HandlerMap

	SequenceNumbers source.SequenceNumberProvider

	Transport Transport

	SourceMetrics      *metrics.SourceMetrics
	DestMetrics        *metrics.DestMetrics
	LostSegmentMetrics *metrics.LostSegmentMetrics
}

func (c *ManagerConfig) setDefaults() {
	if c.Timers == nil {
		c.Timers = timer.SystemProvider{}
	}
	if c.FaultHandlers == nil {
		c.FaultHandlers = faults.NewHandlerMap()
	}
	if c.SequenceNumbers == nil {
		c.SequenceNumbers = NewSequenceCounter(32)
	}
}

// Manager is one local CFDP entity: a registry of Source and
// Destination handlers, one per active transaction, fed by Submit
// (outgoing) and Deliver (incoming) and drained by Tick.
//
// Manager itself performs no network I/O; Tick and Deliver both push
// ready outbound PDUs through cfg.Transport, and Deliver is the only
// entry point for PDUs arriving off the wire.
type Manager struct {
	cfg ManagerConfig

	mu      sync.Mutex
	sources map[ids.TransactionID]*source.Handler
	dests   map[ids.TransactionID]*dest.Handler
}

// NewManager returns a Manager for the local entity named in cfg.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.setDefaults()
	return &Manager{
		cfg:     cfg,
		sources: make(map[ids.TransactionID]*source.Handler),
		dests:   make(map[ids.TransactionID]*dest.Handler),
	}
}

func (m *Manager) sourceConfig() source.Config {
	return source.Config{
		LocalEntityID:   m.cfg.LocalEntityID,
		RemoteConfigs:   m.cfg.RemoteConfigs,
		Filestore:       m.cfg.Filestore,
		Indications:     m.cfg.Indications,
		Timers:          m.cfg.Timers,
		SequenceNumbers: m.cfg.SequenceNumbers,
		FaultHandlers:   m.cfg.FaultHandlers,
		Metrics:         m.cfg.SourceMetrics,
	}
}

func (m *Manager) destConfig() dest.Config {
	return dest.Config{
		LocalEntityID:      m.cfg.LocalEntityID,
		RemoteConfigs:      m.cfg.RemoteConfigs,
		Filestore:          m.cfg.Filestore,
		Indications:        m.cfg.Indications,
		Timers:             m.cfg.Timers,
		FaultHandlers:      m.cfg.FaultHandlers,
		Metrics:            m.cfg.DestMetrics,
		LostSegmentMetrics: m.cfg.LostSegmentMetrics,
	}
}

// Submit starts a new outgoing transaction: a fresh source.Handler is
// created, PutRequest is issued against it, and it is registered for
// future Tick/Deliver calls. The handler's initial outbound PDUs (at
// minimum the Metadata PDU) are drained through the transport before
// Submit returns.
func (m *Manager) Submit(ctx context.Context, req source.PutRequest) (ids.TransactionID, error) {
	if m.cfg.Transport == nil {
		return ids.TransactionID{}, ErrNoTransport
	}

	h := source.NewHandler(m.sourceConfig())
	tx, err := h.PutRequest(ctx, req)
	if err != nil {
		return ids.TransactionID{}, err
	}

	m.mu.Lock()
	m.sources[tx] = h
	m.mu.Unlock()

	if err := m.driveSource(ctx, h, nil); err != nil {
		return tx, err
	}
	return tx, nil
}

// Cancel requests Notice of Cancellation on whichever handler (source
// or destination) owns tid.
func (m *Manager) Cancel(ctx context.Context, tid ids.TransactionID, condition pdu.ConditionCode) error {
	m.mu.Lock()
	sh, sourceOwns := m.sources[tid]
	dh, destOwns := m.dests[tid]
	m.mu.Unlock()

	switch {
	case sourceOwns:
		if err := sh.Cancel(ctx, tid, condition); err != nil {
			return err
		}
		return m.driveSource(ctx, sh, nil)
	case destOwns:
		if err := dh.Cancel(ctx, tid, condition); err != nil {
			return err
		}
		return m.driveDest(ctx, dh, nil)
	default:
		return ErrUnknownTransaction
	}
}

// Deliver routes an inbound, already-decoded PDU to the handler
// responsible for it, creating a new dest.Handler the first time a
// transaction ID is seen travelling toward this entity as a receiver.
// Any outbound PDUs the step (and the self-driven steps it unblocks,
// such as EOF following the last File-Data segment) produce are
// drained through the transport before Deliver returns.
func (m *Manager) Deliver(ctx context.Context, p pdu.PDU, direction pdu.Direction) error {
	who, err := classify.Classify(p, direction)
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}

	tx := p.TransactionID()
	if who == classify.DestinationSourceHandler {
		m.mu.Lock()
		h, ok := m.sources[tx]
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("host: %w: %s", ErrUnknownTransaction, tx)
		}
		return m.driveSource(ctx, h, p)
	}

	m.mu.Lock()
	h, ok := m.dests[tx]
	if !ok {
		h = dest.NewHandler(m.destConfig())
		m.dests[tx] = h
	}
	m.mu.Unlock()

	return m.driveDest(ctx, h, p)
}

// Tick advances every live handler's timers by d and drives each
// handler's state machine forward (with no new inbound PDU) so
// expired timers can act, then drains whatever outbound PDUs that
// produced. Call it on a regular cadence; CFDP timers (ACK, NAK,
// Check-limit, Keep-Alive) have no other way to fire.
func (m *Manager) Tick(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	sources := make([]*source.Handler, 0, len(m.sources))
	for _, h := range m.sources {
		sources = append(sources, h)
	}
	dests := make([]*dest.Handler, 0, len(m.dests))
	for _, h := range m.dests {
		dests = append(dests, h)
	}
	m.mu.Unlock()

	var lastErr error
	for _, h := range sources {
		h.AdvanceTime(d)
		if err := m.driveSource(ctx, h, nil); err != nil {
			lastErr = err
		}
	}
	for _, h := range dests {
		h.AdvanceTime(d)
		if err := m.driveDest(ctx, h, nil); err != nil {
			lastErr = err
		}
	}

	m.reapIdle()
	sourceCount, destCount := m.ActiveTransactions()
	m.cfg.SourceMetrics.SetActiveTransactions(float64(sourceCount))
	m.cfg.DestMetrics.SetActiveTransactions(float64(destCount))
	return lastErr
}

// driveSource steps h with incoming (nil for a timer-only tick), drains
// what that produced, then keeps stepping with no further input as
// long as the handler keeps changing state or producing PDUs on its
// own. A source transaction with nothing left to wait for — sending
// Metadata, a File-Data segment, EOF, or reaching Notice of
// Completion — takes several such self-clocked steps per externally
// triggered event; stopping after the first would leave it parked in
// an intermediate state until the next Tick.
func (m *Manager) driveSource(ctx context.Context, h *source.Handler, incoming pdu.PDU) error {
	st, err := h.StateMachine(ctx, incoming)
	if err != nil {
		return err
	}
	if err := m.drainSource(ctx, h); err != nil {
		return err
	}
	for {
		next, err := h.StateMachine(ctx, nil)
		if err != nil {
			return err
		}
		produced := h.NumPacketsReady() > 0
		if err := m.drainSource(ctx, h); err != nil {
			return err
		}
		if next == st && !produced {
			return nil
		}
		st = next
	}
}

// driveDest is driveSource's counterpart for dest.Handler. The
// destination handler rarely cascades (each PDU it receives triggers
// at most one reaction), but the deferred lost-segment and
// check-limit procedures can still act purely off an expired timer
// and enqueue more than a single PDU across the same Tick, so the
// same stabilize-then-stop loop applies.
func (m *Manager) driveDest(ctx context.Context, h *dest.Handler, incoming pdu.PDU) error {
	st, err := h.StateMachine(ctx, incoming)
	if err != nil {
		return err
	}
	if err := m.drainDest(ctx, h); err != nil {
		return err
	}
	for {
		next, err := h.StateMachine(ctx, nil)
		if err != nil {
			return err
		}
		produced := h.NumPacketsReady() > 0
		if err := m.drainDest(ctx, h); err != nil {
			return err
		}
		if next == st && !produced {
			return nil
		}
		st = next
	}
}

// reapIdle drops handlers that have returned to their IDLE state,
// bounding the registries' memory to the set of genuinely active
// transactions.
func (m *Manager) reapIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tx, h := range m.sources {
		if h.State() == source.StateIdle {
			delete(m.sources, tx)
		}
	}
	for tx, h := range m.dests {
		if h.State() == dest.StateIdle {
			delete(m.dests, tx)
		}
	}
}

// ActiveTransactions reports the number of live source and
// destination handlers, for ActiveTransactions gauge reporting.
func (m *Manager) ActiveTransactions() (sourceCount, destCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources), len(m.dests)
}

// StatusSnapshot is a read-only view of one transaction's observable
// state, safe to publish over the control-plane API without exposing
// the handler itself.
type StatusSnapshot struct {
	TransactionID ids.TransactionID
	Role          string // "source" or "destination"
	State         string
	Progress      uint64
	FileSize      uint64
	FileSizeKnown bool

	// TransmissionMode is populated for the source role only; a
	// destination snapshot leaves it at its zero value
	// (ModeAcknowledged). PositiveAckCount and NumPacketsReady are
	// populated for both roles.
	TransmissionMode pdu.TransmissionMode
	PositiveAckCount int
	NumPacketsReady  int

	// NakActivityCount, CurrentCheckCount and ClosureRequested are
	// populated for the destination role only; they are always zero
	// for a source snapshot.
	NakActivityCount  int
	CurrentCheckCount int
	ClosureRequested  bool
}

func sourceSnapshot(tid ids.TransactionID, h *source.Handler) StatusSnapshot {
	return StatusSnapshot{
		TransactionID:    tid,
		Role:             "source",
		State:            h.State().String(),
		Progress:         h.Progress(),
		TransmissionMode: h.TransmissionMode(),
		PositiveAckCount: h.PositiveAckCounter(),
		NumPacketsReady:  h.NumPacketsReady(),
	}
}

func destSnapshot(tid ids.TransactionID, h *dest.Handler) StatusSnapshot {
	size, known := h.FileSize()
	return StatusSnapshot{
		TransactionID:     tid,
		Role:              "destination",
		State:             h.State().String(),
		Progress:          h.Progress(),
		FileSize:          size,
		FileSizeKnown:     known,
		PositiveAckCount:  h.PositiveAckCounter(),
		NumPacketsReady:   h.NumPacketsReady(),
		NakActivityCount:  h.NakActivityCounter(),
		CurrentCheckCount: h.CurrentCheckCounter(),
		ClosureRequested:  h.ClosureRequested(),
	}
}

// ListStatuses reports a StatusSnapshot for every transaction
// currently owned by this Manager, source and destination alike.
func (m *Manager) ListStatuses() []StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshots := make([]StatusSnapshot, 0, len(m.sources)+len(m.dests))
	for tid, h := range m.sources {
		snapshots = append(snapshots, sourceSnapshot(tid, h))
	}
	for tid, h := range m.dests {
		snapshots = append(snapshots, destSnapshot(tid, h))
	}
	return snapshots
}

// Status reports a StatusSnapshot for tid, if a handler on this
// Manager currently owns it.
func (m *Manager) Status(tid ids.TransactionID) (StatusSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.sources[tid]; ok {
		return sourceSnapshot(tid, h), true
	}
	if h, ok := m.dests[tid]; ok {
		return destSnapshot(tid, h), true
	}
	return StatusSnapshot{}, false
}

func (m *Manager) drainSource(ctx context.Context, h *source.Handler) error {
	for {
		p := h.GetNextPacket()
		if p == nil {
			return nil
		}
		addressee := m.destinationOf(p)
		if err := m.cfg.Transport.Send(ctx, addressee, p); err != nil {
			logger.ErrorCtx(ctx, "host: transport send failed",
				logger.TransactionID(p.TransactionID().String()),
				logger.PDUType(p.Type().String()),
				logger.Err(err),
			)
			return err
		}
	}
}

func (m *Manager) drainDest(ctx context.Context, h *dest.Handler) error {
	for {
		p := h.GetNextPacket()
		if p == nil {
			return nil
		}
		addressee := m.destinationOf(p)
		if err := m.cfg.Transport.Send(ctx, addressee, p); err != nil {
			logger.ErrorCtx(ctx, "host: transport send failed",
				logger.TransactionID(p.TransactionID().String()),
				logger.PDUType(p.Type().String()),
				logger.Err(err),
			)
			return err
		}
	}
}

// destinationOf extracts the addressee entity from an outbound PDU.
// pdu.PDU does not promote Header.Destination (source and destination
// handlers disagree on what else a Header means), so the host — which
// only needs one field off it to address the transport — switches on
// the concrete type itself.
func (m *Manager) destinationOf(p pdu.PDU) ids.EntityID {
	switch v := p.(type) {
	case pdu.Metadata:
		return v.Destination
	case pdu.FileData:
		return v.Destination
	case pdu.EOF:
		return v.Destination
	case pdu.ACK:
		return v.Destination
	case pdu.Finished:
		return v.Destination
	case pdu.NAK:
		return v.Destination
	case pdu.Prompt:
		return v.Destination
	case pdu.KeepAlive:
		return v.Destination
	default:
		return ids.EntityID{}
	}
}
