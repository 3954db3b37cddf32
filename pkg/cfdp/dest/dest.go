// Package dest implements the CFDP Destination Handler: the
// event-driven state machine that receives a file (or metadata-only)
// delivery transaction from its first inbound PDU through reception,
// lost-segment recovery and checksum verification to Transfer
// Completion, per CCSDS 727.0-B-5 §4.2/§4.6.
//
// A Handler instance owns exactly one transaction at a time, mirroring
// pkg/cfdp/source's ownership model: a host receiving many concurrent
// inbound transactions runs one Handler per transaction (see
// pkg/cfdp/host), fanned out by pkg/cfdp/classify. Handler never
// spawns a goroutine or performs blocking I/O of its own; it only acts
// when the host calls StateMachine or AdvanceTime.
package dest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cfdpgo/entity/internal/metrics"
	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/lostsegment"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/timer"
	"github.com/cfdpgo/entity/pkg/cfdp/user"
)

// Errors returned by Handler's public methods. Callers match with
// errors.Is.
var (
	ErrNoRemoteEntityConfigFound = errors.New("dest: no remote entity configuration found")
	ErrNotAddressedToLocalEntity = errors.New("dest: pdu destination entity does not match local entity")
	ErrPduIgnoredForDest         = errors.New("dest: pdu cannot start or continue a destination transaction in this mode")
	ErrWrongTransaction          = errors.New("dest: pdu belongs to a different transaction")
	ErrUnexpectedPdu             = errors.New("dest: pdu type is not valid input to a destination handler")
	ErrUnretrievedPdusToBeSent   = errors.New("dest: outbound queue must be drained before the next state_machine call")
)

// State names the Destination Handler's position in its state
// machine.
type State int

const (
	StateIdle State = iota
	StateWaitingForMetadata
	StateReceivingFileData
	StateWaitingForFinishedAck
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWaitingForMetadata:
		return "WAITING_FOR_METADATA"
	case StateReceivingFileData:
		return "RECEIVING_FILE_DATA"
	case StateWaitingForFinishedAck:
		return "WAITING_FOR_FINISHED_ACK"
	default:
		return "UNKNOWN"
	}
}

// Config supplies a Handler with the components it drives.
type Config struct {
	LocalEntityID ids.EntityID
	RemoteConfigs *remoteconfig.Table
	Filestore     filestore.Filestore
	Indications   user.Indications
	Timers        timer.Provider
	FaultHandlers *faults.HandlerMap

	// Metrics is optional; a nil value disables metric recording.
	Metrics *metrics.DestMetrics
	// LostSegmentMetrics is optional; a nil value disables metric recording.
	LostSegmentMetrics *metrics.LostSegmentMetrics
}

// Handler is the Destination Handler state machine for one
// transaction slot. Create one per concurrently active inbound
// transaction.
type Handler struct {
	mu  sync.Mutex
	cfg Config

	state State

	tx        ids.TransactionID
	source    ids.EntityID
	mode      pdu.TransmissionMode
	largeFile bool

	closureRequested bool
	checksumType     pdu.ChecksumType
	destFilename     string
	segmentLen       int

	fileSize      uint64
	fileSizeKnown bool
	metadataRecvd bool
	eofChecksum   uint32

	progress uint64

	// contigStart/contigEnd bound the current contiguous run of
	// received bytes starting at 0; trackLostSegments advances them as
	// File-Data segments arrive and uses them to tell a gap-filling
	// segment from one that opens a new gap.
	contigStart uint64
	contigEnd   uint64

	lost           *lostsegment.Tracker
	deferredActive bool
	nakCounter     int
	nakTimer       timer.Countdown

	ackCounter   int
	ackTimer     timer.Countdown
	lastFinished *pdu.Finished

	checkCounter int
	checkTimer   timer.Countdown

	condition    pdu.ConditionCode
	faultEntity  *ids.EntityID
	canceled     bool
	deliveryCode pdu.DeliveryCode
	fileStatus   pdu.FileStatus

	outbound []pdu.PDU

	remote remoteconfig.Entry
}

// NewHandler returns an idle Handler driven by cfg.
func NewHandler(cfg Config) *Handler {
	if cfg.FaultHandlers == nil {
		cfg.FaultHandlers = faults.NewHandlerMap()
	}
	return &Handler{cfg: cfg, state: StateIdle}
}

// State returns the handler's current FSM state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// TransactionID returns the handler's active transaction ID. Only
// meaningful once a transaction has been admitted.
func (h *Handler) TransactionID() ids.TransactionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tx
}

// Progress reports the highest byte offset (offset+length) received
// so far in the active transaction, which may run ahead of any gaps
// still outstanding earlier in the file.
func (h *Handler) Progress() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// FileSize reports the transaction's file size and whether it is
// known yet (it isn't until Metadata or an EOF PDU has been seen).
func (h *Handler) FileSize() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fileSize, h.fileSizeKnown
}

// DeferredLostSegmentProcedureActive reports whether the deferred
// lost-segment NAK procedure is currently driving this transaction.
func (h *Handler) DeferredLostSegmentProcedureActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deferredActive
}

// NumPacketsReady reports how many outbound PDUs are queued and not
// yet retrieved via GetNextPacket.
func (h *Handler) NumPacketsReady() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.outbound)
}

// NakActivityCounter reports how many times the NAK timer has expired
// and triggered a re-issued NAK for the active transaction.
func (h *Handler) NakActivityCounter() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nakCounter
}

// PositiveAckCounter reports how many times the ACK timer has expired
// while waiting for a Finished ACK, toward the remote entity's
// ACKLimit.
func (h *Handler) PositiveAckCounter() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ackCounter
}

// CurrentCheckCounter reports how many times the check-limit timer has
// expired while waiting for missing File-Data after EOF, toward the
// remote entity's CheckLimit.
func (h *Handler) CurrentCheckCounter() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checkCounter
}

// ClosureRequested reports whether the active transaction's Metadata
// requested Transaction Closure (a Finished PDU even in Unacknowledged
// mode).
func (h *Handler) ClosureRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closureRequested
}

// GetNextPacket pops and returns the next outbound PDU, or nil if the
// queue is empty.
func (h *Handler) GetNextPacket() pdu.PDU {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.outbound) == 0 {
		return nil
	}
	p := h.outbound[0]
	h.outbound = h.outbound[1:]
	return p
}

func (h *Handler) enqueue(p pdu.PDU) {
	h.outbound = append(h.outbound, p)
}

func (h *Handler) header() pdu.Header {
	return pdu.Header{
		Transaction: h.tx,
		Destination: h.source,
		Mode:        h.mode,
		LargeFile:   h.largeFile,
	}
}

// Cancel requests Notice of Cancellation for the active transaction,
// if tid matches it.
func (h *Handler) Cancel(ctx context.Context, tid ids.TransactionID, condition pdu.ConditionCode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateIdle || !h.tx.Equal(tid) {
		return nil
	}
	_, err := h.declareFault(ctx, condition)
	return err
}

// reset returns the handler to IDLE, ready for a new transaction. The
// outbound queue is left untouched so a final Finished PDU queued the
// same cycle as the reset is still delivered.
func (h *Handler) reset() {
	h.state = StateIdle
	h.lost = nil
	h.deferredActive = false
	h.nakCounter = 0
	h.nakTimer = nil
	h.ackCounter = 0
	h.ackTimer = nil
	h.lastFinished = nil
	h.checkCounter = 0
	h.checkTimer = nil
	h.canceled = false
	h.faultEntity = nil
}

// pduHeader extracts the common Header from any concrete PDU value.
// pdu.PDU does not promote the embedded Header through the interface,
// since CFDP's destination and source handlers want different things
// out of it (the destination reads Destination/Mode before a
// transaction even exists), so callers switch on the concrete type.
func pduHeader(p pdu.PDU) pdu.Header {
	switch v := p.(type) {
	case pdu.Metadata:
		return v.Header
	case pdu.FileData:
		return v.Header
	case pdu.EOF:
		return v.Header
	case pdu.ACK:
		return v.Header
	case pdu.Finished:
		return v.Header
	case pdu.NAK:
		return v.Header
	case pdu.Prompt:
		return v.Header
	case pdu.KeepAlive:
		return v.Header
	default:
		return pdu.Header{}
	}
}

// destPath resolves req's destination filename against a source
// filename, appending the source's basename when destFilename names a
// directory. The transfer layer has no stat-a-directory primitive of
// its own, so a trailing slash is the convention a Metadata PDU's
// dest filename uses to mean "directory".
func destPath(destFilename, sourceFilename string) string {
	if destFilename == "" || destFilename[len(destFilename)-1] != '/' {
		return destFilename
	}
	base := sourceFilename
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	return destFilename + base
}

func errf(op string, err error) error {
	return fmt.Errorf("dest: %s: %w", op, err)
}
