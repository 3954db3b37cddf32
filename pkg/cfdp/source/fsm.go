package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// ErrWrongTransaction is returned by StateMachine when the inserted
// PDU names a different transaction than the one this Handler is
// running.
var ErrWrongTransaction = errors.New("source: pdu belongs to a different transaction")

// ErrUnexpectedPdu is returned when the inserted PDU's type is never
// valid input to a source handler (e.g. Metadata, File-Data).
var ErrUnexpectedPdu = errors.New("source: pdu type is not valid input to a source handler")

// StateMachine advances the handler by zero or one inserted PDU,
// returning the resulting state. It fails if the outbound queue has
// not been fully drained via GetNextPacket since the last call, on
// PDU validation errors, or on filestore/checksum errors encountered
// while building the next outbound PDU.
func (h *Handler) StateMachine(ctx context.Context, incoming pdu.PDU) (State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.outbound) > 0 {
		return h.state, ErrUnretrievedPdusToBeSent
	}
	if h.state == StateIdle {
		return h.state, nil
	}

	if incoming != nil {
		if err := h.validateInbound(incoming); err != nil {
			return h.state, err
		}
	}

	lc := logger.NewLogContext(h.tx.String(), "source").
		WithRemoteEntity(h.destination.String()).
		WithStep(h.state.String())
	ctx = logger.WithContext(ctx, lc)

	switch h.state {
	case StateSendingMetadata:
		return h.doSendingMetadata(ctx)
	case StateSendingFileData:
		return h.doSendingFileData(ctx, incoming)
	case StateRetransmitting:
		return h.doRetransmitting(ctx, incoming)
	case StateSendingEOF:
		return h.doSendingEOF(ctx)
	case StateWaitingForEOFAck:
		return h.doWaitingForEOFAck(ctx, incoming)
	case StateWaitingForFinished:
		return h.doWaitingForFinished(ctx, incoming)
	case StateSendingAckOfFinished:
		h.state = StateNoticeOfCompletion
		return h.state, nil
	case StateNoticeOfCompletion:
		return h.doNoticeOfCompletion(ctx)
	default:
		return h.state, nil
	}
}

// AdvanceTime moves the handler's active retry timers forward by d.
// The host calls this between StateMachine calls; Handler never
// schedules its own wakeups.
func (h *Handler) AdvanceTime(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ackTimer != nil {
		h.ackTimer.Advance(d)
	}
	if h.checkTimer != nil {
		h.checkTimer.Advance(d)
	}
}

func (h *Handler) validateInbound(p pdu.PDU) error {
	if !p.TransactionID().Equal(h.tx) {
		return fmt.Errorf("%w: %s while handling %s", ErrWrongTransaction, p.TransactionID(), h.tx)
	}
	switch p.Type() {
	case pdu.TypeACK, pdu.TypeNAK, pdu.TypeFinished, pdu.TypeKeepAlive:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedPdu, p.Type())
	}
}

func (h *Handler) header() pdu.Header {
	return pdu.Header{
		Transaction: h.tx,
		Destination: h.destination,
		Mode:        h.mode,
		LargeFile:   h.largeFile,
	}
}

func (h *Handler) buildMetadata() pdu.Metadata {
	fileSize := h.fileSize
	if h.metadataOnly {
		fileSize = 0
	}
	return pdu.Metadata{
		Header:           h.header(),
		ClosureRequested: h.closure,
		Checksum:         h.checksumT,
		FileSize:         fileSize,
		SourceFilename:   h.sourceFilename,
		DestFilename:     h.destFilename,
		Options:          h.options,
	}
}

func (h *Handler) doSendingMetadata(ctx context.Context) (State, error) {
	h.enqueue(h.buildMetadata())
	logger.InfoCtx(ctx, "metadata queued",
		logger.TransactionID(h.tx.String()),
		logger.Size(h.fileSize),
	)

	switch {
	case h.metadataOnly && h.closure:
		h.state = StateWaitingForFinished
	case h.metadataOnly:
		h.state = StateNoticeOfCompletion
	case h.fileSize == 0:
		h.state = StateSendingEOF
	default:
		h.state = StateSendingFileData
	}
	return h.state, nil
}

func (h *Handler) doSendingFileData(ctx context.Context, incoming pdu.PDU) (State, error) {
	if nak, ok := incoming.(pdu.NAK); ok && h.mode == pdu.ModeAcknowledged {
		return h.enterRetransmitting(ctx, nak)
	}

	offset := h.progress
	length := h.segmentLen
	if remaining := h.fileSize - h.progress; uint64(length) > remaining {
		length = int(remaining)
	}

	data, err := h.readSegment(ctx, offset, length)
	if err != nil {
		return h.state, fmt.Errorf("source: read file segment at %d: %w", offset, err)
	}

	h.enqueue(pdu.FileData{Header: h.header(), Offset: offset, Data: data})
	h.sum.Update(offset, data)
	h.progress += uint64(len(data))
	h.cfg.Metrics.IncSegmentsSent()
	h.cfg.Metrics.AddBytesSent(float64(len(data)))

	logger.DebugCtx(ctx, "file segment queued",
		logger.Offset(offset),
		logger.Length(len(data)),
	)

	if h.progress >= h.fileSize {
		h.state = StateSendingEOF
	}
	return h.state, nil
}

func (h *Handler) enterRetransmitting(ctx context.Context, nak pdu.NAK) (State, error) {
	h.priorState = h.state
	h.state = StateRetransmitting
	return h.processNak(ctx, nak)
}

func (h *Handler) doRetransmitting(ctx context.Context, incoming pdu.PDU) (State, error) {
	if nak, ok := incoming.(pdu.NAK); ok {
		return h.processNak(ctx, nak)
	}
	h.state = h.priorState
	return h.state, nil
}

func (h *Handler) processNak(ctx context.Context, nak pdu.NAK) (State, error) {
	h.cfg.Metrics.IncNakBatchesReceived()
	for _, seg := range nak.Segments {
		if seg.Start == 0 && seg.End == 0 {
			h.enqueue(h.buildMetadata())
			continue
		}
		if seg.End < seg.Start || seg.Start > h.progress {
			return h.state, ErrInvalidNakPdu
		}
		off := seg.Start
		for off < seg.End {
			length := h.segmentLen
			if remaining := seg.End - off; uint64(length) > remaining {
				length = int(remaining)
			}
			data, err := h.readSegment(ctx, off, length)
			if err != nil {
				return h.state, fmt.Errorf("source: retransmit segment at %d: %w", off, err)
			}
			h.enqueue(pdu.FileData{Header: h.header(), Offset: off, Data: data})
			h.cfg.Metrics.IncRetransmitSegments()
			h.cfg.Metrics.AddBytesSent(float64(len(data)))
			off += uint64(length)
		}
	}
	logger.InfoCtx(ctx, "retransmission batch queued", logger.TransactionID(h.tx.String()))
	return h.state, nil
}

func (h *Handler) readSegment(ctx context.Context, offset uint64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	if rr := filestore.AsRangeReader(h.cfg.Filestore); rr != nil {
		buf := make([]byte, length)
		n, err := rr.ReadAt(ctx, h.sourceFilename, offset, buf)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}

	r, err := h.cfg.Filestore.Open(ctx, h.sourceFilename)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if _, err := io.CopyN(io.Discard, r, int64(offset)); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func (h *Handler) doSendingEOF(ctx context.Context) (State, error) {
	eof := pdu.EOF{
		Header:       h.header(),
		Condition:    h.condition,
		FileChecksum: h.sum.Sum(),
		FileSize:     h.fileSize,
		FaultEntity:  h.faultEntity,
	}
	h.lastEOF = &eof
	h.enqueue(eof)
	h.cfg.Indications.EOFSentIndication(ctx, h.tx)

	if h.mode == pdu.ModeUnacknowledged {
		if h.closure {
			// No dedicated check-limit interval is negotiated for the
			// source side; the inactivity timeout bounds how long it
			// waits for a Finished PDU before giving up.
			h.checkTimer = h.cfg.Timers.NewCountdown(h.remote.InactivityTimeout)
			h.checkTimer.Reset()
			h.state = StateWaitingForFinished
		} else {
			h.state = StateNoticeOfCompletion
		}
		return h.state, nil
	}

	h.ackTimer = h.cfg.Timers.NewCountdown(h.remote.ACKTimeout)
	h.ackTimer.Reset()
	h.ackCounter = 0
	h.state = StateWaitingForEOFAck
	return h.state, nil
}

func (h *Handler) doWaitingForEOFAck(ctx context.Context, incoming pdu.PDU) (State, error) {
	switch p := incoming.(type) {
	case pdu.NAK:
		return h.enterRetransmitting(ctx, p)
	case pdu.ACK:
		if p.AcknowledgedType == pdu.TypeEOF {
			h.state = StateWaitingForFinished
			return h.state, nil
		}
	}

	if h.ackTimer != nil && h.ackTimer.Expired() {
		if h.ackCounter+1 >= h.remote.ACKLimit {
			return h.declareFault(ctx, pdu.ConditionPositiveACKLimitReached)
		}
		h.ackTimer.Reset()
		h.ackCounter++
		if h.lastEOF != nil {
			h.enqueue(*h.lastEOF)
		}
	}
	return h.state, nil
}

func (h *Handler) doWaitingForFinished(ctx context.Context, incoming pdu.PDU) (State, error) {
	switch p := incoming.(type) {
	case pdu.NAK:
		return h.enterRetransmitting(ctx, p)
	case pdu.Finished:
		h.finished = &p
		if h.mode == pdu.ModeAcknowledged {
			h.enqueue(pdu.ACK{
				Header:           h.header(),
				AcknowledgedType: pdu.TypeFinished,
				AcknowledgedCode: p.Condition,
				TransactionState: pdu.TransactionStatusTerminated,
			})
			h.state = StateSendingAckOfFinished
		} else {
			h.state = StateNoticeOfCompletion
		}
		return h.state, nil
	}

	if h.mode == pdu.ModeUnacknowledged && h.checkTimer != nil && h.checkTimer.Expired() {
		if h.checkCounter+1 >= h.remote.CheckLimit {
			return h.declareFault(ctx, pdu.ConditionCheckLimitReached)
		}
		h.checkTimer.Reset()
		h.checkCounter++
	}
	return h.state, nil
}

func (h *Handler) doNoticeOfCompletion(ctx context.Context) (State, error) {
	condition := h.condition
	delivery := pdu.DeliveryComplete
	fileStatus := pdu.FileStatusUnreported
	if h.finished != nil {
		condition = h.finished.Condition
		delivery = h.finished.DeliveryCode
		fileStatus = h.finished.FileStatus
	}
	h.cfg.Indications.TransactionFinishedIndication(ctx, h.tx, condition, delivery, fileStatus)
	h.cfg.Metrics.RecordTransactionCompleted(condition.String())
	h.state = StateIdle
	return h.state, nil
}

// declareFault runs condition through the local fault handler map and
// applies the resulting disposition. CCSDS 727.0-B-5 §4.11.2.2.3: a
// fault declared while an EOF(Cancel) is being sent or awaits its ACK
// forces abandonment regardless of the configured disposition, since a
// second cancellation cannot be layered on the first.
func (h *Handler) declareFault(ctx context.Context, condition pdu.ConditionCode) (State, error) {
	disposition := h.cfg.FaultHandlers.Lookup(condition)
	if h.canceled && (h.state == StateSendingEOF || h.state == StateWaitingForEOFAck) {
		disposition = faults.DispositionAbandon
	}

	h.cfg.Indications.FaultIndication(ctx, h.tx, condition, h.progress)

	switch disposition {
	case faults.DispositionIgnore:
		return h.state, nil
	case faults.DispositionSuspend:
		h.cfg.Indications.SuspendedIndication(ctx, h.tx, condition)
		return h.state, nil
	case faults.DispositionAbandon:
		h.cfg.Indications.AbandonedIndication(ctx, h.tx, condition)
		h.cfg.Metrics.RecordTransactionCompleted(condition.String())
		h.state = StateIdle
		return h.state, nil
	default:
		return h.beginCancel(ctx, condition)
	}
}

func (h *Handler) beginCancel(ctx context.Context, condition pdu.ConditionCode) (State, error) {
	h.canceled = true
	h.condition = condition
	local := h.cfg.LocalEntityID
	h.faultEntity = &local
	h.state = StateSendingEOF
	logger.WarnCtx(ctx, "transaction canceled",
		logger.TransactionID(h.tx.String()),
		logger.ConditionCode(int(condition)),
	)
	return h.state, nil
}
