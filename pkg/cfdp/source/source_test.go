package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/localfs"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/source"
	"github.com/cfdpgo/entity/pkg/cfdp/timer"
	"github.com/cfdpgo/entity/pkg/cfdp/user"
)

type fixedSeq struct {
	value uint64
	width int
	err   error
}

func (f fixedSeq) Next() (uint64, int, error) { return f.value, f.width, f.err }

// recordingIndications wraps LoggingIndications and additionally
// records every FaultIndication so tests can assert a fault fired
// without depending on the handler's subsequent state transitions.
type recordingIndications struct {
	*user.LoggingIndications
	faults []pdu.ConditionCode
}

func (r *recordingIndications) FaultIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode, progress uint64) {
	r.faults = append(r.faults, condition)
	r.LoggingIndications.FaultIndication(ctx, tx, condition, progress)
}

func newHandlerWithIndicationsAndSegLen(t *testing.T, root string, remote ids.EntityID, mode pdu.TransmissionMode, ind user.Indications, segLen int) (*source.Handler, ids.EntityID) {
	t.Helper()
	local, err := ids.NewEntityID(ids.Width4, 1)
	require.NoError(t, err)

	table := remoteconfig.NewTable()
	entry := remoteconfig.DefaultEntry(remote)
	entry.DefaultTransmissionMode = mode
	entry.MaxFileSegmentLen = segLen
	entry.MaxPacketLen = segLen
	entry.ACKTimeout = 10 * time.Millisecond
	entry.ACKLimit = 2
	table.Put(entry)

	h := source.NewHandler(source.Config{
		LocalEntityID:   local,
		RemoteConfigs:   table,
		Filestore:       localfs.New(root),
		Indications:     ind,
		Timers:          timer.NewFakeProvider(),
		SequenceNumbers: fixedSeq{value: 1, width: 32},
		FaultHandlers:   faults.NewHandlerMap(),
	})
	return h, local
}

func newHandlerWithIndications(t *testing.T, root string, remote ids.EntityID, mode pdu.TransmissionMode, ind user.Indications) (*source.Handler, ids.EntityID) {
	t.Helper()
	return newHandlerWithIndicationsAndSegLen(t, root, remote, mode, ind, 2)
}

func newHandler(t *testing.T, root string, remote ids.EntityID, mode pdu.TransmissionMode) (*source.Handler, ids.EntityID) {
	t.Helper()
	return newHandlerWithIndications(t, root, remote, mode, user.NewLoggingIndications())
}

func drainAll(h *source.Handler) []pdu.PDU {
	var out []pdu.PDU
	for {
		p := h.GetNextPacket()
		if p == nil {
			return out
		}
		out = append(out, p)
	}
}

func TestPutRequestFailsWhenSourceFileMissing(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeUnacknowledged)

	_, err := h.PutRequest(ctx, source.PutRequest{
		DestinationID:  remote,
		SourceFilename: "missing.bin",
	})
	require.ErrorIs(t, err, source.ErrSourceFileDoesNotExist)
}

func TestPutRequestFailsWhenNoRemoteConfig(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	remote, _ := ids.NewEntityID(ids.Width4, 2)
	unconfigured, _ := ids.NewEntityID(ids.Width4, 3)
	h, _ := newHandler(t, root, remote, pdu.ModeUnacknowledged)

	_, err := h.PutRequest(ctx, source.PutRequest{DestinationID: unconfigured})
	require.ErrorIs(t, err, source.ErrNoRemoteEntityConfigFound)
}

func TestPutRequestFailsWhenBusy(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeUnacknowledged)

	_, err := h.PutRequest(ctx, source.PutRequest{DestinationID: remote})
	require.NoError(t, err)

	_, err = h.PutRequest(ctx, source.PutRequest{DestinationID: remote})
	require.ErrorIs(t, err, source.ErrBusy)
}

func TestStateMachineRejectsCallsWithUndrainedQueue(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeUnacknowledged)

	_, err := h.PutRequest(ctx, source.PutRequest{DestinationID: remote})
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, nil)
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, nil)
	require.ErrorIs(t, err, source.ErrUnretrievedPdusToBeSent)
}

func TestClass1HelloWorldExactlyThreeOutboundPDUs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.bin"), []byte("Hello World!"), 0644))

	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandlerWithIndicationsAndSegLen(t, root, remote, pdu.ModeUnacknowledged, user.NewLoggingIndications(), 1024)

	_, err := h.PutRequest(ctx, source.PutRequest{
		DestinationID:  remote,
		SourceFilename: "src.bin",
		DestFilename:   "dst.bin",
	})
	require.NoError(t, err)

	var all []pdu.PDU
	for {
		st, err := h.StateMachine(ctx, nil)
		require.NoError(t, err)
		all = append(all, drainAll(h)...)
		if st == source.StateIdle {
			break
		}
	}

	require.Len(t, all, 3)
	meta, ok := all[0].(pdu.Metadata)
	require.True(t, ok)
	require.Equal(t, uint64(12), meta.FileSize)

	fd, ok := all[1].(pdu.FileData)
	require.True(t, ok)
	require.Equal(t, uint64(0), fd.Offset)
	require.Equal(t, "Hello World!", string(fd.Data))

	eof, ok := all[2].(pdu.EOF)
	require.True(t, ok)
	require.Equal(t, uint64(12), eof.FileSize)
	require.Equal(t, pdu.ConditionNoError, eof.Condition)
}

func TestEmptyFileSkipsStraightToEOF(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.bin"), nil, 0644))

	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeAcknowledged)

	_, err := h.PutRequest(ctx, source.PutRequest{
		DestinationID:  remote,
		SourceFilename: "empty.bin",
		DestFilename:   "dst.bin",
	})
	require.NoError(t, err)

	// Metadata is queued and the handler transitions straight to
	// SENDING_EOF within the same call, skipping SENDING_FILE_DATA
	// entirely since the file is empty.
	st, err := h.StateMachine(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, source.StateSendingEOF, st)

	all := drainAll(h)
	require.Len(t, all, 1)
	_, ok := all[0].(pdu.Metadata)
	require.True(t, ok)
}

func TestMetadataOnlyPutRequestAppendsOriginatingTransactionID(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeUnacknowledged)

	_, err := h.PutRequest(ctx, source.PutRequest{DestinationID: remote})
	require.NoError(t, err)

	st, err := h.StateMachine(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, source.StateNoticeOfCompletion, st)

	all := drainAll(h)
	require.Len(t, all, 1)
	meta := all[0].(pdu.Metadata)
	require.Equal(t, uint64(0), meta.FileSize)

	found := false
	for _, opt := range meta.Options {
		if opt.Type == pdu.TLVMessageToUser && len(opt.Value) > 0 && opt.Value[0] == 0x02 {
			found = true
		}
	}
	require.True(t, found, "expected an originating-transaction-id message to user")
}

func TestMetadataOnlyProxyPutResponseSuppressesOriginatingID(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeUnacknowledged)

	proxyResponse := []byte{0x01, 0xAA}
	_, err := h.PutRequest(ctx, source.PutRequest{
		DestinationID:  remote,
		MessagesToUser: [][]byte{proxyResponse},
	})
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, nil)
	require.NoError(t, err)
	all := drainAll(h)
	meta := all[0].(pdu.Metadata)

	for _, opt := range meta.Options {
		if opt.Type == pdu.TLVMessageToUser && len(opt.Value) > 0 && opt.Value[0] == 0x02 {
			t.Fatalf("originating transaction id should be suppressed when a proxy put response is present")
		}
	}
}

func TestMetadataOnlyNoClosureGoesIdleWithoutFinishedPdu(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeUnacknowledged)

	closure := false
	_, err := h.PutRequest(ctx, source.PutRequest{DestinationID: remote, ClosureRequested: &closure})
	require.NoError(t, err)

	var all []pdu.PDU
	for {
		st, err := h.StateMachine(ctx, nil)
		require.NoError(t, err)
		all = append(all, drainAll(h)...)
		if st == source.StateIdle {
			break
		}
	}
	require.Len(t, all, 1) // metadata only, no Finished PDU travels on a source's outbound queue
	require.Equal(t, source.StateIdle, h.State())
}

func TestRetransmittingInvalidNakPduWhenStartBeyondProgress(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.bin"), []byte("0123456789"), 0644))

	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeAcknowledged)

	tx, err := h.PutRequest(ctx, source.PutRequest{
		DestinationID:  remote,
		SourceFilename: "src.bin",
		DestFilename:   "dst.bin",
	})
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, nil) // metadata
	require.NoError(t, err)
	drainAll(h)

	_, err = h.StateMachine(ctx, nil) // first file-data segment, progress=2
	require.NoError(t, err)
	drainAll(h)

	nak := pdu.NAK{
		Header:   pdu.Header{Transaction: tx, Mode: pdu.ModeAcknowledged},
		Segments: []pdu.SegmentRequest{{Start: 8, End: 10}}, // start > progress(2)
	}
	_, err = h.StateMachine(ctx, nak)
	require.ErrorIs(t, err, source.ErrInvalidNakPdu)
}

func TestRetransmittingMetadataOnZeroZeroSegmentRequest(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.bin"), []byte("0123456789"), 0644))

	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeAcknowledged)

	tx, err := h.PutRequest(ctx, source.PutRequest{
		DestinationID:  remote,
		SourceFilename: "src.bin",
		DestFilename:   "dst.bin",
	})
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, nil) // metadata queued
	require.NoError(t, err)
	drainAll(h)

	_, err = h.StateMachine(ctx, nil) // first segment sent, now SENDING_FILE_DATA
	require.NoError(t, err)
	drainAll(h)

	nak := pdu.NAK{
		Header:   pdu.Header{Transaction: tx, Mode: pdu.ModeAcknowledged},
		Segments: []pdu.SegmentRequest{{Start: 0, End: 0}},
	}
	st, err := h.StateMachine(ctx, nak)
	require.NoError(t, err)
	require.Equal(t, source.StateRetransmitting, st)

	all := drainAll(h)
	require.Len(t, all, 1)
	_, ok := all[0].(pdu.Metadata)
	require.True(t, ok, "a (0,0) segment request re-sends the Metadata PDU")
}

func TestPositiveAckLimitReachedCancelsTransaction(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.bin"), nil, 0644))

	remote, _ := ids.NewEntityID(ids.Width4, 2)
	ind := &recordingIndications{LoggingIndications: user.NewLoggingIndications()}
	h, _ := newHandlerWithIndications(t, root, remote, pdu.ModeAcknowledged, ind)

	_, err := h.PutRequest(ctx, source.PutRequest{
		DestinationID:  remote,
		SourceFilename: "empty.bin",
		DestFilename:   "dst.bin",
	})
	require.NoError(t, err)

	st, err := h.StateMachine(ctx, nil) // metadata queued; empty file transitions straight to SENDING_EOF
	require.NoError(t, err)
	require.Equal(t, source.StateSendingEOF, st)
	drainAll(h)

	st, err = h.StateMachine(ctx, nil) // emits EOF, arms ack timer
	require.NoError(t, err)
	require.Equal(t, source.StateWaitingForEOFAck, st)
	drainAll(h)

	// ACKLimit is 2: the first expiry retransmits the EOF, the second
	// exhausts the positive-ACK procedure and the fault handler's
	// default disposition (Cancel) fires.
	h.AdvanceTime(11 * time.Millisecond)
	st, err = h.StateMachine(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, source.StateWaitingForEOFAck, st)
	drainAll(h) // retransmitted EOF

	h.AdvanceTime(11 * time.Millisecond)
	st, err = h.StateMachine(ctx, nil)
	require.NoError(t, err)
	drainAll(h)

	require.Contains(t, ind.faults, pdu.ConditionPositiveACKLimitReached)
	require.Equal(t, source.StateSendingEOF, st)
}

func TestCancelRequestDrivesEOFCancel(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.bin"), []byte("0123456789"), 0644))

	remote, _ := ids.NewEntityID(ids.Width4, 2)
	h, _ := newHandler(t, root, remote, pdu.ModeUnacknowledged)

	tx, err := h.PutRequest(ctx, source.PutRequest{
		DestinationID:  remote,
		SourceFilename: "src.bin",
		DestFilename:   "dst.bin",
	})
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, nil) // metadata
	require.NoError(t, err)
	drainAll(h)

	require.NoError(t, h.Cancel(ctx, tx, pdu.ConditionCancelRequestReceived))
	require.Equal(t, source.StateSendingEOF, h.State())

	st, err := h.StateMachine(ctx, nil)
	require.NoError(t, err)
	all := drainAll(h)
	require.Len(t, all, 1)
	eof, ok := all[0].(pdu.EOF)
	require.True(t, ok)
	require.Equal(t, pdu.ConditionCancelRequestReceived, eof.Condition)
	_ = st
}

func TestInvalidSequenceWidthSurfacesError(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, _ := ids.NewEntityID(ids.Width4, 1)
	remote, _ := ids.NewEntityID(ids.Width4, 2)

	table := remoteconfig.NewTable()
	table.Put(remoteconfig.DefaultEntry(remote))

	h := source.NewHandler(source.Config{
		LocalEntityID:   local,
		RemoteConfigs:   table,
		Filestore:       localfs.New(root),
		Indications:     user.NewLoggingIndications(),
		Timers:          timer.NewFakeProvider(),
		SequenceNumbers: fixedSeq{value: 1, width: 24},
	})

	_, err := h.PutRequest(ctx, source.PutRequest{DestinationID: remote})
	require.ErrorIs(t, err, source.ErrInvalidSequenceWidth)
}
