package dest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/checksum"
	"github.com/cfdpgo/entity/pkg/cfdp/lostsegment"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// StateMachine advances the handler by zero or one inserted PDU,
// returning the resulting state. From IDLE, a Metadata, File-Data or
// EOF PDU addressed to the local entity admits a new transaction;
// anything else is ignored or rejected per the admission rules below.
func (h *Handler) StateMachine(ctx context.Context, incoming pdu.PDU) (State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.outbound) > 0 {
		return h.state, ErrUnretrievedPdusToBeSent
	}

	if h.state == StateIdle {
		if incoming == nil {
			return h.state, nil
		}
		return h.admitNew(ctx, incoming)
	}

	if incoming != nil {
		if err := h.validateInbound(incoming); err != nil {
			return h.state, err
		}
	}

	lc := logger.NewLogContext(h.tx.String(), "dest").
		WithRemoteEntity(h.source.String()).
		WithStep(h.state.String())
	ctx = logger.WithContext(ctx, lc)

	switch h.state {
	case StateWaitingForMetadata, StateReceivingFileData:
		return h.doReceive(ctx, incoming)
	case StateWaitingForFinishedAck:
		return h.doWaitingForFinishedAck(ctx, incoming)
	default:
		return h.state, nil
	}
}

// AdvanceTime moves the handler's active retry timers forward by d.
// The host calls this between StateMachine calls.
func (h *Handler) AdvanceTime(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.nakTimer != nil {
		h.nakTimer.Advance(d)
	}
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
	case pdu.TypeMetadata, pdu.TypeFileData, pdu.TypeEOF, pdu.TypeACK, pdu.TypePrompt:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedPdu, p.Type())
	}
}

// admitNew applies CCSDS 727.0-B-5's admission rules to the first PDU
// of a prospective transaction: it must name the local entity as
// destination, and in Class 1 (Unacknowledged) only Metadata may
// start a transaction — File-Data or EOF arriving first is rejected,
// since a Class 1 destination has no recovery procedure to fall back
// on if the preceding Metadata never arrives.
func (h *Handler) admitNew(ctx context.Context, incoming pdu.PDU) (State, error) {
	hdr := pduHeader(incoming)
	if !hdr.Destination.Equal(h.cfg.LocalEntityID) {
		return h.state, ErrNotAddressedToLocalEntity
	}

	switch p := incoming.(type) {
	case pdu.Metadata:
		if err := h.beginTransaction(hdr); err != nil {
			return h.state, err
		}
		lc := logger.NewLogContext(h.tx.String(), "dest").WithRemoteEntity(h.source.String())
		ctx = logger.WithContext(ctx, lc)
		h.cfg.Indications.NewTransactionDetectedIndication(ctx, h.tx)
		h.state = StateReceivingFileData
		if err := h.handleMetadata(ctx, p); err != nil {
			return h.state, err
		}
		return h.state, nil

	case pdu.FileData:
		if hdr.Mode != pdu.ModeAcknowledged {
			return h.state, ErrPduIgnoredForDest
		}
		if err := h.beginTransaction(hdr); err != nil {
			return h.state, err
		}
		lc := logger.NewLogContext(h.tx.String(), "dest").WithRemoteEntity(h.source.String())
		ctx = logger.WithContext(ctx, lc)
		h.cfg.Indications.NewTransactionDetectedIndication(ctx, h.tx)
		// Metadata is still unknown, so there is no destination path to
		// write this segment's bytes into yet; the whole prefix up to
		// its end is recorded as missing and re-requested once Metadata
		// (and the path it carries) arrives.
		h.lost = lostsegment.NewTracker()
		h.progress = p.Offset + uint64(len(p.Data))
		h.lost.Add(0, h.progress)
		h.state = StateWaitingForMetadata
		if h.remote.ImmediateNAKEnabled {
			h.emitNakBatch(ctx)
		}
		return h.state, nil

	case pdu.EOF:
		if hdr.Mode != pdu.ModeAcknowledged {
			return h.state, ErrPduIgnoredForDest
		}
		if err := h.beginTransaction(hdr); err != nil {
			return h.state, err
		}
		lc := logger.NewLogContext(h.tx.String(), "dest").WithRemoteEntity(h.source.String())
		ctx = logger.WithContext(ctx, lc)
		h.cfg.Indications.NewTransactionDetectedIndication(ctx, h.tx)
		h.fileSize = p.FileSize
		h.fileSizeKnown = true
		h.progress = p.FileSize
		h.eofChecksum = p.FileChecksum
		h.lost = lostsegment.NewTracker()
		if p.FileSize > 0 {
			h.lost.Add(0, p.FileSize)
		}
		h.cfg.Indications.MetadataRecvIndication(ctx, h.tx, "", h.destFilename, p.FileSize)
		h.enqueue(pdu.ACK{
			Header:           h.header(),
			AcknowledgedType: pdu.TypeEOF,
			AcknowledgedCode: p.Condition,
			TransactionState: pdu.TransactionStatusActive,
		})
		h.state = StateWaitingForMetadata
		if p.Condition != pdu.ConditionNoError {
			return h.handleEOFCancel(ctx, p)
		}
		h.deferredActive = true
		return h.state, nil

	default:
		return h.state, ErrPduIgnoredForDest
	}
}

func (h *Handler) beginTransaction(hdr pdu.Header) error {
	remote, ok := h.cfg.RemoteConfigs.Lookup(hdr.Transaction.SourceEntity)
	if !ok {
		return ErrNoRemoteEntityConfigFound
	}
	h.tx = hdr.Transaction
	h.source = hdr.Transaction.SourceEntity
	h.mode = hdr.Mode
	h.largeFile = hdr.LargeFile
	h.remote = remote
	h.segmentLen = remote.MaxFileSegmentLen
	if remote.MaxPacketLen > 0 && remote.MaxPacketLen < h.segmentLen {
		h.segmentLen = remote.MaxPacketLen
	}
	if h.segmentLen <= 0 {
		h.segmentLen = 1024
	}
	h.progress = 0
	h.contigStart = 0
	h.contigEnd = 0
	h.fileSize = 0
	h.fileSizeKnown = false
	h.metadataRecvd = false
	h.condition = pdu.ConditionNoError
	h.deliveryCode = pdu.DeliveryIncomplete
	h.fileStatus = pdu.FileStatusUnreported
	h.cfg.Metrics.RecordTransactionStarted(h.mode.String())
	return nil
}

// doReceive handles the steady-state reception pipeline: it applies
// whatever PDU arrived this cycle, then advances whichever recovery
// procedure (deferred lost-segment NAKs, Class 1 check-limit) is
// currently active.
func (h *Handler) doReceive(ctx context.Context, incoming pdu.PDU) (State, error) {
	if incoming != nil {
		var err error
		switch p := incoming.(type) {
		case pdu.Metadata:
			err = h.handleMetadata(ctx, p)
			h.state = StateReceivingFileData
		case pdu.FileData:
			err = h.handleFileData(ctx, p)
		case pdu.EOF:
			return h.handleEOF(ctx, p)
		case pdu.ACK, pdu.Prompt:
			// A duplicate ACK(EOF) or a Prompt requesting immediate NAK
			// activity; the deferred procedure below already re-issues
			// NAKs on its own schedule, so a Prompt is treated the same
			// as a tick here. Keep-alive progress reports are host
			// transport concern once adopted.
		}
		if err != nil {
			return h.state, err
		}
	}

	if h.deferredActive {
		return h.stepDeferred(ctx)
	}
	if h.checkTimer != nil && h.checkTimer.Expired() {
		return h.stepCheckLimit(ctx)
	}
	return h.state, nil
}

func (h *Handler) handleMetadata(ctx context.Context, p pdu.Metadata) error {
	h.checksumType = p.Checksum
	h.closureRequested = p.ClosureRequested
	h.fileSize = p.FileSize
	h.fileSizeKnown = true
	h.destFilename = destPath(p.DestFilename, p.SourceFilename)
	h.metadataRecvd = true

	if err := h.cfg.Filestore.Create(ctx, h.destFilename); err != nil {
		if !errors.Is(err, filestore.ErrAlreadyExists) {
			return h.rejectFilestore(ctx, "create", err)
		}
		if err := h.cfg.Filestore.Replace(ctx, h.destFilename, bytes.NewReader(nil)); err != nil {
			return h.rejectFilestore(ctx, "truncate", err)
		}
	}

	logger.InfoCtx(ctx, "metadata received",
		logger.TransactionID(h.tx.String()),
		logger.Size(p.FileSize),
	)
	h.cfg.Indications.MetadataRecvIndication(ctx, h.tx, p.SourceFilename, h.destFilename, p.FileSize)

	if h.lost == nil {
		h.lost = lostsegment.NewTracker()
	}
	return nil
}

func (h *Handler) rejectFilestore(ctx context.Context, op string, cause error) error {
	logger.WarnCtx(ctx, fmt.Sprintf("filestore rejection on %s: %v", op, cause),
		logger.TransactionID(h.tx.String()),
	)
	h.fileStatus = pdu.FileStatusDiscarded
	_, err := h.declareFault(ctx, pdu.ConditionFilestoreRejection)
	if err != nil {
		return err
	}
	return nil
}

func (h *Handler) handleFileData(ctx context.Context, p pdu.FileData) error {
	if h.fileSizeKnown && p.Offset+uint64(len(p.Data)) > h.fileSize {
		_, err := h.declareFault(ctx, pdu.ConditionFileSizeError)
		return err
	}

	w, err := h.cfg.Filestore.Writer(ctx, h.destFilename, p.Offset)
	if err != nil {
		return h.rejectFilestore(ctx, "write", err)
	}
	_, werr := w.Write(p.Data)
	cerr := w.Close()
	if werr != nil {
		return h.rejectFilestore(ctx, "write", werr)
	}
	if cerr != nil {
		return h.rejectFilestore(ctx, "write", cerr)
	}

	end := p.Offset + uint64(len(p.Data))
	if end > h.progress {
		h.progress = end
	}
	h.cfg.Indications.FileSegmentRecvIndication(ctx, h.tx, p.Offset, len(p.Data))
	h.cfg.Metrics.IncSegmentsReceived()
	h.cfg.Metrics.AddBytesReceived(float64(len(p.Data)))

	if h.mode == pdu.ModeAcknowledged && h.lost != nil {
		h.trackLostSegments(ctx, p.Offset, end)
	}
	return nil
}

// trackLostSegments applies CFDP's detection rule for one File-Data
// segment [off, end) against the current contiguous run
// [contigStart, contigEnd): a segment starting past the run opens a
// new gap, one starting at or before the run's end extends it, and
// one landing entirely behind the run's start fills a previously
// recorded gap (CFDP 4.6.4.7 resets deferred NAK activity when that
// happens).
func (h *Handler) trackLostSegments(ctx context.Context, off, end uint64) {
	switch {
	case off > h.contigEnd:
		h.lost.Add(h.contigEnd, off)
		h.cfg.LostSegmentMetrics.IncGapsOpened()
		h.contigStart, h.contigEnd = off, end
		if h.remote.ImmediateNAKEnabled {
			h.emitNakBatch(ctx)
		}
	case off >= h.contigStart:
		if end > h.contigEnd {
			h.contigEnd = end
		}
	case end <= h.contigStart:
		if removed, err := h.lost.Remove(off, end); err == nil && removed {
			h.cfg.LostSegmentMetrics.IncGapsClosed()
			if h.deferredActive {
				h.nakCounter = 0
				h.nakTimer = nil
			}
		}
	default:
		if removed, err := h.lost.Remove(off, end); err == nil && removed {
			h.cfg.LostSegmentMetrics.IncGapsClosed()
		}
	}
	h.cfg.LostSegmentMetrics.SetOpenGaps(float64(len(h.lost.Ranges())))
}

func (h *Handler) handleEOF(ctx context.Context, p pdu.EOF) (State, error) {
	h.fileSize = p.FileSize
	h.fileSizeKnown = true
	h.eofChecksum = p.FileChecksum

	if p.Condition != pdu.ConditionNoError {
		if h.mode == pdu.ModeAcknowledged {
			h.enqueue(pdu.ACK{
				Header:           h.header(),
				AcknowledgedType: pdu.TypeEOF,
				AcknowledgedCode: p.Condition,
				TransactionState: pdu.TransactionStatusActive,
			})
		}
		return h.handleEOFCancel(ctx, p)
	}

	if h.progress > h.fileSize {
		return h.declareFault(ctx, pdu.ConditionFileSizeError)
	}

	if h.mode == pdu.ModeAcknowledged {
		if h.progress < h.fileSize {
			h.lost.Add(h.progress, h.fileSize)
		}
		h.enqueue(pdu.ACK{
			Header:           h.header(),
			AcknowledgedType: pdu.TypeEOF,
			AcknowledgedCode: p.Condition,
			TransactionState: pdu.TransactionStatusActive,
		})
		if h.lost.IsComplete() && h.metadataRecvd {
			return h.finalizeChecksum(ctx)
		}
		h.deferredActive = true
		return h.state, nil
	}

	// Class 1: verify checksum now; a mismatch starts the check-limit
	// retry loop instead of failing outright, since late-arriving
	// duplicate or reordered segments over an unreliable transport can
	// still complete the file after EOF is seen.
	sum, err := checksum.ComputeOverFile(ctx, h.cfg.Filestore, h.destFilename, h.fileSize, h.segmentLen, h.checksumType)
	if err != nil {
		return h.state, errf("verify checksum", err)
	}
	if sum != h.eofChecksum {
		h.cfg.Metrics.IncChecksumFailures()
		h.checkTimer = h.cfg.Timers.NewCountdown(h.remote.InactivityTimeout)
		h.checkTimer.Reset()
		return h.state, nil
	}
	h.deliveryCode = pdu.DeliveryComplete
	return h.completeTransfer(ctx, pdu.ConditionNoError)
}

func (h *Handler) handleEOFCancel(ctx context.Context, p pdu.EOF) (State, error) {
	h.canceled = true
	h.faultEntity = p.FaultEntity
	if h.fileSize > 0 && h.progress >= h.fileSize {
		h.deliveryCode = pdu.DeliveryComplete
	} else if h.fileSize == 0 && h.progress == 0 {
		h.deliveryCode = pdu.DeliveryComplete
	} else {
		h.deliveryCode = pdu.DeliveryIncomplete
	}
	return h.completeTransfer(ctx, p.Condition)
}

// stepDeferred advances the deferred lost-segment NAK procedure by one
// FSM cycle. It is called every cycle the procedure is active,
// whether or not a PDU arrived, so timer expiry is observed even on
// otherwise idle ticks.
func (h *Handler) stepDeferred(ctx context.Context) (State, error) {
	if h.lost.IsComplete() && h.metadataRecvd {
		return h.finalizeChecksum(ctx)
	}

	if h.nakTimer == nil {
		h.nakTimer = h.cfg.Timers.NewCountdown(h.remote.NAKTimeout)
		h.nakTimer.Reset()
		h.emitNakBatch(ctx)
		return h.state, nil
	}
	if !h.nakTimer.Expired() {
		return h.state, nil
	}
	if h.nakCounter+1 >= h.remote.NAKLimit {
		h.deliveryCode = pdu.DeliveryIncomplete
		return h.declareFault(ctx, pdu.ConditionNakLimitReached)
	}
	h.nakTimer.Reset()
	h.nakCounter++
	h.emitNakBatch(ctx)
	return h.state, nil
}

// emitNakBatch builds one or more NAK PDUs covering the tracker's
// current gaps, batched to roughly remote.MaxPacketLen bytes per PDU
// (an approximation: the exact encoded size of a segment request
// entry is a wire-codec detail this package does not own).
func (h *Handler) emitNakBatch(ctx context.Context) {
	segments := make([]pdu.SegmentRequest, 0)
	if !h.metadataRecvd {
		segments = append(segments, pdu.SegmentRequest{Start: 0, End: 0})
	}
	for _, r := range h.lost.Ranges() {
		segments = append(segments, pdu.SegmentRequest{Start: r.Start, End: r.End})
	}
	if len(segments) == 0 {
		return
	}

	perBatch := h.remote.MaxPacketLen / 16
	if perBatch < 1 {
		perBatch = 1
	}
	outerScopeEnd := h.progress
	if h.fileSizeKnown {
		outerScopeEnd = h.fileSize
	}

	for i := 0; i < len(segments); i += perBatch {
		end := i + perBatch
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[i:end]
		scopeStart := uint64(0)
		scopeEnd := outerScopeEnd
		if i > 0 {
			scopeStart = batch[0].Start
		}
		if end < len(segments) {
			scopeEnd = batch[len(batch)-1].End
		}
		h.enqueue(pdu.NAK{
			Header:     h.header(),
			ScopeStart: scopeStart,
			ScopeEnd:   scopeEnd,
			Segments:   append([]pdu.SegmentRequest(nil), batch...),
		})
		h.cfg.Metrics.IncNakBatchesSent()
	}
	logger.InfoCtx(ctx, "nak batch queued", logger.TransactionID(h.tx.String()))
}

func (h *Handler) stepCheckLimit(ctx context.Context) (State, error) {
	sum, err := checksum.ComputeOverFile(ctx, h.cfg.Filestore, h.destFilename, h.fileSize, h.segmentLen, h.checksumType)
	if err != nil {
		return h.state, errf("verify checksum", err)
	}
	if sum == h.eofChecksum {
		h.checkTimer = nil
		h.deliveryCode = pdu.DeliveryComplete
		return h.completeTransfer(ctx, pdu.ConditionNoError)
	}
	h.cfg.Metrics.IncChecksumFailures()
	h.checkCounter++
	if h.checkCounter+1 >= h.remote.CheckLimit {
		h.deliveryCode = pdu.DeliveryIncomplete
		return h.declareFault(ctx, pdu.ConditionCheckLimitReached)
	}
	h.checkTimer.Reset()
	return h.state, nil
}

func (h *Handler) finalizeChecksum(ctx context.Context) (State, error) {
	h.deferredActive = false
	sum, err := checksum.ComputeOverFile(ctx, h.cfg.Filestore, h.destFilename, h.fileSize, h.segmentLen, h.checksumType)
	if err != nil {
		return h.state, errf("verify checksum", err)
	}
	if sum != h.eofChecksum {
		h.cfg.Metrics.IncChecksumFailures()
		h.deliveryCode = pdu.DeliveryIncomplete
		return h.declareFault(ctx, pdu.ConditionFileChecksumFailure)
	}
	h.deliveryCode = pdu.DeliveryComplete
	return h.completeTransfer(ctx, pdu.ConditionNoError)
}

// completeTransfer runs Transfer Completion: it disposes of the
// received file if the transaction was canceled with an incomplete
// delivery, fires Transaction-Finished, and either resets to IDLE
// (Class 1 without closure) or queues a Finished PDU and waits for its
// acknowledgment (Class 2, or Class 1 with closure requested — which
// still only gets one shot, since Class 1 has no ack/retry procedure).
func (h *Handler) completeTransfer(ctx context.Context, condition pdu.ConditionCode) (State, error) {
	h.condition = condition

	if h.canceled && h.deliveryCode == pdu.DeliveryIncomplete {
		if err := h.cfg.Filestore.DenyFile(ctx, h.destFilename); err != nil {
			logger.WarnCtx(ctx, "discard canceled file failed", logger.TransactionID(h.tx.String()))
		}
		h.fileStatus = pdu.FileStatusDiscarded
	} else {
		h.fileStatus = pdu.FileStatusRetained
	}

	logger.InfoCtx(ctx, "transaction finished",
		logger.TransactionID(h.tx.String()),
		logger.ConditionCode(int(condition)),
	)
	h.cfg.Indications.TransactionFinishedIndication(ctx, h.tx, h.condition, h.deliveryCode, h.fileStatus)
	h.cfg.Metrics.RecordTransactionCompleted(condition.String())

	if h.mode == pdu.ModeUnacknowledged && !h.closureRequested {
		h.reset()
		return h.state, nil
	}

	finished := pdu.Finished{
		Header:       h.header(),
		Condition:    h.condition,
		DeliveryCode: h.deliveryCode,
		FileStatus:   h.fileStatus,
	}
	h.lastFinished = &finished
	h.enqueue(finished)

	if h.mode == pdu.ModeUnacknowledged {
		h.reset()
		return h.state, nil
	}

	h.ackTimer = h.cfg.Timers.NewCountdown(h.remote.ACKTimeout)
	h.ackTimer.Reset()
	h.ackCounter = 0
	h.state = StateWaitingForFinishedAck
	return h.state, nil
}

func (h *Handler) doWaitingForFinishedAck(ctx context.Context, incoming pdu.PDU) (State, error) {
	if ack, ok := incoming.(pdu.ACK); ok && ack.AcknowledgedType == pdu.TypeFinished {
		h.reset()
		return h.state, nil
	}

	if h.ackTimer != nil && h.ackTimer.Expired() {
		if h.ackCounter+1 >= h.remote.ACKLimit {
			return h.declareFault(ctx, pdu.ConditionPositiveACKLimitReached)
		}
		h.ackTimer.Reset()
		h.ackCounter++
		if h.lastFinished != nil {
			h.enqueue(*h.lastFinished)
		}
	}
	return h.state, nil
}

// declareFault runs condition through the local fault handler map and
// applies the resulting disposition. Unlike the source side, a
// destination cancellation has no EOF(Cancel) of its own to send: it
// goes straight to Transfer Completion with whatever delivery state it
// has already reached.
func (h *Handler) declareFault(ctx context.Context, condition pdu.ConditionCode) (State, error) {
	disposition := h.cfg.FaultHandlers.Lookup(condition)
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
		h.reset()
		return h.state, nil
	default:
		h.canceled = true
		local := h.cfg.LocalEntityID
		h.faultEntity = &local
		return h.completeTransfer(ctx, condition)
	}
}
