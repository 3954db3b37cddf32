// Package source implements the CFDP Source Handler: the
// event-driven state machine that drives a file (or metadata-only)
// delivery transaction from a Put.request through Metadata, File-Data
// and EOF transmission to Notice of Completion, per CCSDS 727.0-B-5
// §4.1/§4.6.
//
// A Handler instance owns exactly one transaction at a time and is not
// safe to drive from two transactions concurrently; a host running
// many simultaneous transfers runs one Handler per transaction (see
// pkg/cfdp/host). Within a single transaction's lifetime, Handler is
// safe for PutRequest/StateMachine/AdvanceTime/Cancel to be called from different
// goroutines serially, guarded by an internal mutex — it never spawns
// a goroutine of its own and never performs network or blocking I/O;
// advancing time or delivering a PDU both happen only when the host
// calls into it.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/internal/metrics"
	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/checksum"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/timer"
	"github.com/cfdpgo/entity/pkg/cfdp/user"
)

// Errors returned by Handler's public methods. Callers match with
// errors.Is.
var (
	ErrBusy                      = errors.New("source: handler is busy with another transaction")
	ErrSourceFileDoesNotExist    = errors.New("source: source file does not exist")
	ErrNoRemoteEntityConfigFound = errors.New("source: no remote entity configuration found")
	ErrUnretrievedPdusToBeSent   = errors.New("source: outbound queue must be drained before the next state_machine call")
	ErrInvalidNakPdu             = errors.New("source: invalid NAK PDU")
	ErrInvalidSequenceWidth      = errors.New("source: sequence number provider width must be 8, 16, or 32 bits")
)

// State names the Source Handler's position in its state machine.
type State int

const (
	StateIdle State = iota
	StateSendingMetadata
	StateSendingFileData
	StateRetransmitting
	StateSendingEOF
	StateWaitingForEOFAck
	StateWaitingForFinished
	StateSendingAckOfFinished
	StateNoticeOfCompletion
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSendingMetadata:
		return "SENDING_METADATA"
	case StateSendingFileData:
		return "SENDING_FILE_DATA"
	case StateRetransmitting:
		return "RETRANSMITTING"
	case StateSendingEOF:
		return "SENDING_EOF"
	case StateWaitingForEOFAck:
		return "WAITING_FOR_EOF_ACK"
	case StateWaitingForFinished:
		return "WAITING_FOR_FINISHED"
	case StateSendingAckOfFinished:
		return "SENDING_ACK_OF_FINISHED"
	case StateNoticeOfCompletion:
		return "NOTICE_OF_COMPLETION"
	default:
		return "UNKNOWN"
	}
}

// SequenceNumberProvider draws the next transaction sequence number
// and reports the bit width it was drawn at (one of 8, 16, 32), which
// the handler validates before using it.
type SequenceNumberProvider interface {
	Next() (value uint64, bitWidth int, err error)
}

// PutRequest describes a file (or metadata-only) delivery to start.
// Fields left at their zero value fall back to the destination's
// RemoteConfig defaults.
type PutRequest struct {
	DestinationID ids.EntityID

	// SourceFilename is empty for a metadata-only transaction (no
	// file data is transferred, only Metadata/TLV options).
	SourceFilename string
	DestFilename   string

	TransmissionMode  *pdu.TransmissionMode
	ClosureRequested  *bool
	ChecksumType      *pdu.ChecksumType
	MessagesToUser    [][]byte
	FilestoreRequests []pdu.TLV
	FlowLabel         []byte
}

// Config supplies a Handler with the components it drives: filestore
// access, the remote configuration table, the user indication
// interface, and the timer and sequence-number providers it must
// never construct its own wall-clock or randomness source from.
type Config struct {
	LocalEntityID   ids.EntityID
	RemoteConfigs   *remoteconfig.Table
	Filestore       filestore.Filestore
	Indications     user.Indications
	Timers          timer.Provider
	SequenceNumbers SequenceNumberProvider
	FaultHandlers   *faults.HandlerMap

	// Metrics is optional; a nil value disables metric recording.
	Metrics *metrics.SourceMetrics
}

// Handler is the Source Handler state machine for one transaction
// slot. Create one per concurrently active outbound transaction.
type Handler struct {
	mu  sync.Mutex
	cfg Config

	state      State
	priorState State // saved on entry to StateRetransmitting

	tx          ids.TransactionID
	destination ids.EntityID
	mode        pdu.TransmissionMode
	largeFile   bool
	closure     bool
	checksumT   pdu.ChecksumType

	metadataOnly   bool
	sourceFilename string
	destFilename   string
	options        []pdu.TLV

	fileSize   uint64
	progress   uint64
	segmentLen int
	sum        checksum.Checksum

	outbound []pdu.PDU

	condition   pdu.ConditionCode
	faultEntity *ids.EntityID
	canceled    bool

	ackCounter int
	ackTimer   timer.Countdown

	checkCounter int
	checkTimer   timer.Countdown

	finished *pdu.Finished
	lastEOF  *pdu.EOF

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
// meaningful once PutRequest has succeeded.
func (h *Handler) TransactionID() ids.TransactionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tx
}

// Progress reports bytes sent so far in the active transaction.
func (h *Handler) Progress() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// NumPacketsReady reports how many outbound PDUs are queued and not
// yet retrieved via GetNextPacket.
func (h *Handler) NumPacketsReady() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.outbound)
}

// TransmissionMode reports the active transaction's transmission mode.
// Only meaningful once PutRequest has succeeded.
func (h *Handler) TransmissionMode() pdu.TransmissionMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mode
}

// PositiveAckCounter reports how many times the ACK timer has expired
// while waiting for the ACK of the EOF PDU, toward the remote entity's
// ACKLimit.
func (h *Handler) PositiveAckCounter() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ackCounter
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

// PutRequest starts a new transaction. It returns ErrBusy if the
// handler is not idle.
func (h *Handler) PutRequest(ctx context.Context, req PutRequest) (ids.TransactionID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateIdle {
		return ids.TransactionID{}, ErrBusy
	}

	metadataOnly := req.SourceFilename == ""
	if !metadataOnly {
		exists, err := h.cfg.Filestore.FileExists(ctx, req.SourceFilename)
		if err != nil {
			return ids.TransactionID{}, fmt.Errorf("source: check source file: %w", err)
		}
		if !exists {
			return ids.TransactionID{}, ErrSourceFileDoesNotExist
		}
	}

	remote, ok := h.cfg.RemoteConfigs.Lookup(req.DestinationID)
	if !ok {
		return ids.TransactionID{}, ErrNoRemoteEntityConfigFound
	}

	width := h.cfg.LocalEntityID.Width
	if req.DestinationID.Width > width {
		width = req.DestinationID.Width
	}
	localID, err := ids.NewEntityID(width, h.cfg.LocalEntityID.Value)
	if err != nil {
		return ids.TransactionID{}, fmt.Errorf("source: widen local entity id: %w", err)
	}
	destID, err := ids.NewEntityID(width, req.DestinationID.Value)
	if err != nil {
		return ids.TransactionID{}, fmt.Errorf("source: widen destination entity id: %w", err)
	}

	seqValue, seqBits, err := h.cfg.SequenceNumbers.Next()
	if err != nil {
		return ids.TransactionID{}, fmt.Errorf("source: draw sequence number: %w", err)
	}
	if seqBits != 8 && seqBits != 16 && seqBits != 32 {
		return ids.TransactionID{}, ErrInvalidSequenceWidth
	}

	tx := ids.TransactionID{SourceEntity: localID, SequenceNum: seqValue}

	var fileSize uint64
	if !metadataOnly {
		fileSize, err = h.cfg.Filestore.FileSize(ctx, req.SourceFilename)
		if err != nil {
			return ids.TransactionID{}, fmt.Errorf("source: stat source file: %w", err)
		}
	}

	mode := remote.DefaultTransmissionMode
	if req.TransmissionMode != nil {
		mode = *req.TransmissionMode
	}
	closure := remote.DefaultClosureRequested
	if req.ClosureRequested != nil {
		closure = *req.ClosureRequested
	}
	checksumT := remote.DefaultChecksumType
	if req.ChecksumType != nil {
		checksumT = *req.ChecksumType
	}

	segmentLen := remote.MaxFileSegmentLen
	if remote.MaxPacketLen > 0 && remote.MaxPacketLen < segmentLen {
		segmentLen = remote.MaxPacketLen
	}
	if segmentLen <= 0 {
		segmentLen = 1024
	}

	h.destination = destID
	h.mode = mode
	h.largeFile = fileSize > 0xFFFFFFFF
	h.closure = closure
	h.checksumT = checksumT
	h.metadataOnly = metadataOnly
	h.sourceFilename = req.SourceFilename
	h.destFilename = req.DestFilename
	h.fileSize = fileSize
	h.progress = 0
	h.segmentLen = segmentLen
	h.sum = checksum.New(checksumT)
	h.outbound = nil
	h.condition = pdu.ConditionNoError
	h.faultEntity = nil
	h.canceled = false
	h.ackCounter = 0
	h.checkCounter = 0
	h.finished = nil
	h.remote = remote
	h.tx = tx

	h.options = buildOptions(req)
	if !hasProxyPutResponse(req.MessagesToUser) {
		h.options = append(h.options, pdu.TLV{
			Type:  pdu.TLVMessageToUser,
			Value: encodeOriginatingTransactionID(tx),
		})
	}

	lc := logger.NewLogContext(tx.String(), "source").WithRemoteEntity(destID.String())
	ctx = logger.WithContext(ctx, lc)
	logger.InfoCtx(ctx, "transaction started",
		logger.TransactionID(tx.String()),
		logger.EntityID(destID.String()),
	)
	h.cfg.Indications.TransactionIndication(ctx, tx)
	h.cfg.Metrics.RecordTransactionStarted(mode.String())

	h.state = StateSendingMetadata
	return tx, nil
}

func buildOptions(req PutRequest) []pdu.TLV {
	opts := make([]pdu.TLV, 0, len(req.FilestoreRequests)+len(req.MessagesToUser)+1)
	opts = append(opts, req.FilestoreRequests...)
	for _, m := range req.MessagesToUser {
		opts = append(opts, pdu.TLV{Type: pdu.TLVMessageToUser, Value: m})
	}
	if len(req.FlowLabel) > 0 {
		opts = append(opts, pdu.TLV{Type: pdu.TLVFlowLabel, Value: req.FlowLabel})
	}
	return opts
}

// Cancel requests Notice of Cancellation for the active transaction,
// if tid matches it. Class 2 transfers still need to drain an
// EOF(Cancel) through to NOTICE_OF_COMPLETION before the handler goes
// idle again.
func (h *Handler) Cancel(ctx context.Context, tid ids.TransactionID, condition pdu.ConditionCode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateIdle || !h.tx.Equal(tid) {
		return nil
	}
	_, err := h.declareFault(ctx, condition)
	return err
}
