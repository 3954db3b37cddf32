package dest_test

import (
	"context"
	"hash/crc32"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/pkg/cfdp/dest"
	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/localfs"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/timer"
	"github.com/cfdpgo/entity/pkg/cfdp/user"
)

// recordingIndications wraps LoggingIndications and records the
// indications tests need to assert on without depending on further
// FSM transitions.
type recordingIndications struct {
	*user.LoggingIndications
	faults    []pdu.ConditionCode
	abandoned []pdu.ConditionCode
}

func (r *recordingIndications) FaultIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode, progress uint64) {
	r.faults = append(r.faults, condition)
	r.LoggingIndications.FaultIndication(ctx, tx, condition, progress)
}

func (r *recordingIndications) AbandonedIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode) {
	r.abandoned = append(r.abandoned, condition)
	r.LoggingIndications.AbandonedIndication(ctx, tx, condition)
}

func newDestHandler(t *testing.T, root string, local, remoteSource ids.EntityID, mode pdu.TransmissionMode, ind user.Indications) *dest.Handler {
	t.Helper()
	table := remoteconfig.NewTable()
	entry := remoteconfig.DefaultEntry(remoteSource)
	entry.DefaultTransmissionMode = mode
	entry.ACKTimeout = 10 * time.Millisecond
	entry.ACKLimit = 2
	entry.NAKTimeout = 10 * time.Millisecond
	entry.NAKLimit = 3
	entry.CheckLimit = 2
	entry.InactivityTimeout = 10 * time.Millisecond
	entry.MaxFileSegmentLen = 4
	entry.MaxPacketLen = 64
	table.Put(entry)

	return dest.NewHandler(dest.Config{
		LocalEntityID: local,
		RemoteConfigs: table,
		Filestore:     localfs.New(root),
		Indications:   ind,
		Timers:        timer.NewFakeProvider(),
		FaultHandlers: faults.NewHandlerMap(),
	})
}

func drainAll(h *dest.Handler) []pdu.PDU {
	var out []pdu.PDU
	for {
		p := h.GetNextPacket()
		if p == nil {
			return out
		}
		out = append(out, p)
	}
}

func newIDs(t *testing.T) (local, remote ids.EntityID) {
	t.Helper()
	var err error
	local, err = ids.NewEntityID(ids.Width4, 1)
	require.NoError(t, err)
	remote, err = ids.NewEntityID(ids.Width4, 2)
	require.NoError(t, err)
	return local, remote
}

func TestAdmitNewRejectsWrongDestination(t *testing.T) {
	ctx := context.Background()
	local, remote := newIDs(t)
	other, err := ids.NewEntityID(ids.Width4, 99)
	require.NoError(t, err)
	h := newDestHandler(t, t.TempDir(), local, remote, pdu.ModeUnacknowledged, user.NewLoggingIndications())

	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	meta := pdu.Metadata{Header: pdu.Header{Transaction: tx, Destination: other, Mode: pdu.ModeUnacknowledged}}

	_, err = h.StateMachine(ctx, meta)
	require.ErrorIs(t, err, dest.ErrNotAddressedToLocalEntity)
}

func TestAdmitNewClass1RejectsFileDataFirst(t *testing.T) {
	ctx := context.Background()
	local, remote := newIDs(t)
	h := newDestHandler(t, t.TempDir(), local, remote, pdu.ModeUnacknowledged, user.NewLoggingIndications())

	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	fd := pdu.FileData{Header: pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeUnacknowledged}, Offset: 0, Data: []byte("ab")}

	_, err := h.StateMachine(ctx, fd)
	require.ErrorIs(t, err, dest.ErrPduIgnoredForDest)
}

func TestAdmitNewClass2AcceptsFileDataFirstAndTracksPrefixAsLost(t *testing.T) {
	ctx := context.Background()
	local, remote := newIDs(t)
	h := newDestHandler(t, t.TempDir(), local, remote, pdu.ModeAcknowledged, user.NewLoggingIndications())

	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	fd := pdu.FileData{Header: pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeAcknowledged}, Offset: 8, Data: []byte("89")}

	st, err := h.StateMachine(ctx, fd)
	require.NoError(t, err)
	require.Equal(t, dest.StateWaitingForMetadata, st)

	all := drainAll(h)
	require.Len(t, all, 1)
	nak, ok := all[0].(pdu.NAK)
	require.True(t, ok)
	require.Contains(t, nak.Segments, pdu.SegmentRequest{Start: 0, End: 0})
	require.Contains(t, nak.Segments, pdu.SegmentRequest{Start: 0, End: 10})
}

func TestEmptyFileClass2ClosureReachesWaitingForFinishedAck(t *testing.T) {
	ctx := context.Background()
	local, remote := newIDs(t)
	h := newDestHandler(t, t.TempDir(), local, remote, pdu.ModeAcknowledged, user.NewLoggingIndications())
	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}

	meta := pdu.Metadata{
		Header:           pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeAcknowledged},
		ClosureRequested: true,
		Checksum:         pdu.ChecksumCRC32,
		FileSize:         0,
		DestFilename:     "dst.bin",
	}
	st, err := h.StateMachine(ctx, meta)
	require.NoError(t, err)
	require.Equal(t, dest.StateReceivingFileData, st)

	eof := pdu.EOF{
		Header:       pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeAcknowledged},
		Condition:    pdu.ConditionNoError,
		FileChecksum: crc32.ChecksumIEEE(nil),
		FileSize:     0,
	}
	st, err = h.StateMachine(ctx, eof)
	require.NoError(t, err)
	require.Equal(t, dest.StateWaitingForFinishedAck, st)

	all := drainAll(h)
	require.Len(t, all, 2)
	_, ok := all[0].(pdu.ACK)
	require.True(t, ok)
	fin, ok := all[1].(pdu.Finished)
	require.True(t, ok)
	require.Equal(t, pdu.DeliveryComplete, fin.DeliveryCode)
	require.Equal(t, pdu.FileStatusRetained, fin.FileStatus)
}

func TestEOFBeforeMetadataClass2TracksWholeFileAndNaks(t *testing.T) {
	ctx := context.Background()
	local, remote := newIDs(t)
	h := newDestHandler(t, t.TempDir(), local, remote, pdu.ModeAcknowledged, user.NewLoggingIndications())
	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}

	eof := pdu.EOF{
		Header:       pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeAcknowledged},
		Condition:    pdu.ConditionNoError,
		FileChecksum: 0xDEADBEEF,
		FileSize:     10,
	}
	st, err := h.StateMachine(ctx, eof)
	require.NoError(t, err)
	require.Equal(t, dest.StateWaitingForMetadata, st)
	ack := drainAll(h)
	require.Len(t, ack, 1)
	_, ok := ack[0].(pdu.ACK)
	require.True(t, ok)
	require.True(t, h.DeferredLostSegmentProcedureActive())

	st, err = h.StateMachine(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, dest.StateWaitingForMetadata, st)

	naks := drainAll(h)
	require.Len(t, naks, 1)
	nak := naks[0].(pdu.NAK)
	require.Contains(t, nak.Segments, pdu.SegmentRequest{Start: 0, End: 0})
	require.Contains(t, nak.Segments, pdu.SegmentRequest{Start: 0, End: 10})
}

func TestLostMiddleSegmentDetectedAndRecovered(t *testing.T) {
	ctx := context.Background()
	local, remote := newIDs(t)
	h := newDestHandler(t, t.TempDir(), local, remote, pdu.ModeAcknowledged, user.NewLoggingIndications())
	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	header := pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeAcknowledged}

	meta := pdu.Metadata{Header: header, Checksum: pdu.ChecksumCRC32, FileSize: 10, DestFilename: "dst.bin"}
	_, err := h.StateMachine(ctx, meta)
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, pdu.FileData{Header: header, Offset: 0, Data: []byte("0123")})
	require.NoError(t, err)
	require.Empty(t, drainAll(h))

	st, err := h.StateMachine(ctx, pdu.FileData{Header: header, Offset: 8, Data: []byte("89")})
	require.NoError(t, err)
	require.Equal(t, dest.StateReceivingFileData, st)

	naks := drainAll(h)
	require.Len(t, naks, 1)
	nak := naks[0].(pdu.NAK)
	require.Contains(t, nak.Segments, pdu.SegmentRequest{Start: 4, End: 8})

	_, err = h.StateMachine(ctx, pdu.FileData{Header: header, Offset: 4, Data: []byte("4567")})
	require.NoError(t, err)
	require.Empty(t, drainAll(h))

	eof := pdu.EOF{
		Header:       header,
		Condition:    pdu.ConditionNoError,
		FileChecksum: crc32.ChecksumIEEE([]byte("0123456789")),
		FileSize:     10,
	}
	st, err = h.StateMachine(ctx, eof)
	require.NoError(t, err)
	require.Equal(t, dest.StateWaitingForFinishedAck, st)

	all := drainAll(h)
	require.Len(t, all, 2)
	fin := all[1].(pdu.Finished)
	require.Equal(t, pdu.ConditionNoError, fin.Condition)
	require.Equal(t, pdu.DeliveryComplete, fin.DeliveryCode)
}

func TestClass1ChecksumMismatchReachesCheckLimit(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, remote := newIDs(t)
	ind := &recordingIndications{LoggingIndications: user.NewLoggingIndications()}
	h := newDestHandler(t, root, local, remote, pdu.ModeUnacknowledged, ind)
	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	header := pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeUnacknowledged}

	meta := pdu.Metadata{Header: header, Checksum: pdu.ChecksumCRC32, FileSize: 6, DestFilename: "dst.bin"}
	_, err := h.StateMachine(ctx, meta)
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, pdu.FileData{Header: header, Offset: 0, Data: []byte("HELLX!")})
	require.NoError(t, err)

	eof := pdu.EOF{
		Header:       header,
		Condition:    pdu.ConditionNoError,
		FileChecksum: crc32.ChecksumIEEE([]byte("HELLO!")),
		FileSize:     6,
	}
	st, err := h.StateMachine(ctx, eof)
	require.NoError(t, err)
	require.Equal(t, dest.StateReceivingFileData, st)

	h.AdvanceTime(11 * time.Millisecond)
	st, err = h.StateMachine(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, dest.StateIdle, st)
	require.Contains(t, ind.faults, pdu.ConditionCheckLimitReached)
}

func TestClass1ChecksumMismatchRecoversAfterLateSegment(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, remote := newIDs(t)
	h := newDestHandler(t, root, local, remote, pdu.ModeUnacknowledged, user.NewLoggingIndications())
	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	header := pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeUnacknowledged}

	meta := pdu.Metadata{Header: header, Checksum: pdu.ChecksumCRC32, FileSize: 6, DestFilename: "dst.bin"}
	_, err := h.StateMachine(ctx, meta)
	require.NoError(t, err)

	_, err = h.StateMachine(ctx, pdu.FileData{Header: header, Offset: 0, Data: []byte("HELLX!")})
	require.NoError(t, err)

	eof := pdu.EOF{
		Header:       header,
		Condition:    pdu.ConditionNoError,
		FileChecksum: crc32.ChecksumIEEE([]byte("HELLO!")),
		FileSize:     6,
	}
	_, err = h.StateMachine(ctx, eof)
	require.NoError(t, err)

	// A late, corrected File-Data PDU for the same range arrives before
	// the check-limit timer's next expiry.
	_, err = h.StateMachine(ctx, pdu.FileData{Header: header, Offset: 0, Data: []byte("HELLO!")})
	require.NoError(t, err)

	h.AdvanceTime(11 * time.Millisecond)
	st, err := h.StateMachine(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, dest.StateIdle, st)
}

// TestPositiveAckLimitOnFinishedRoutesThroughFaultHandler exercises the
// destination side of the positive-ACK procedure symmetrically with
// the source side (source.TestPositiveAckLimitReachedCancelsTransaction):
// exhausting ACKLimit on Finished goes through declareFault, not a
// hardcoded abandon, so the default Cancel disposition re-drives
// completeTransfer and re-emits Finished rather than abandoning the
// transaction outright.
func TestPositiveAckLimitOnFinishedRoutesThroughFaultHandler(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, remote := newIDs(t)
	ind := &recordingIndications{LoggingIndications: user.NewLoggingIndications()}
	h := newDestHandler(t, root, local, remote, pdu.ModeAcknowledged, ind)
	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	header := pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeAcknowledged}

	meta := pdu.Metadata{Header: header, Checksum: pdu.ChecksumCRC32, FileSize: 0, DestFilename: "dst.bin"}
	_, err := h.StateMachine(ctx, meta)
	require.NoError(t, err)

	eof := pdu.EOF{Header: header, Condition: pdu.ConditionNoError, FileChecksum: crc32.ChecksumIEEE(nil), FileSize: 0}
	st, err := h.StateMachine(ctx, eof)
	require.NoError(t, err)
	require.Equal(t, dest.StateWaitingForFinishedAck, st)
	drainAll(h)

	// ACKLimit is 2: the first expiry retransmits Finished, the second
	// exhausts the positive-ACK procedure and the fault handler's
	// default disposition (Cancel) fires.
	h.AdvanceTime(11 * time.Millisecond)
	st, err = h.StateMachine(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, dest.StateWaitingForFinishedAck, st)
	drainAll(h) // resent Finished

	h.AdvanceTime(11 * time.Millisecond)
	st, err = h.StateMachine(ctx, nil)
	require.NoError(t, err)
	require.Contains(t, ind.faults, pdu.ConditionPositiveACKLimitReached)
	require.Empty(t, ind.abandoned)
	require.Equal(t, dest.StateWaitingForFinishedAck, st)
}

func TestCancelRequestDisposesIncompleteFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, remote := newIDs(t)
	h := newDestHandler(t, root, local, remote, pdu.ModeAcknowledged, user.NewLoggingIndications())
	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	header := pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeAcknowledged}

	meta := pdu.Metadata{Header: header, Checksum: pdu.ChecksumCRC32, FileSize: 10, DestFilename: "dst.bin"}
	_, err := h.StateMachine(ctx, meta)
	require.NoError(t, err)

	require.NoError(t, h.Cancel(ctx, tx, pdu.ConditionCancelRequestReceived))

	fs := localfs.New(root)
	ok, err := fs.FileExists(ctx, "dst.bin")
	require.NoError(t, err)
	require.False(t, ok, "an incomplete, canceled transfer's partial file should be discarded")
}

func TestWrongTransactionErrorsOnSecondTransaction(t *testing.T) {
	ctx := context.Background()
	local, remote := newIDs(t)
	h := newDestHandler(t, t.TempDir(), local, remote, pdu.ModeAcknowledged, user.NewLoggingIndications())
	tx := ids.TransactionID{SourceEntity: remote, SequenceNum: 1}
	header := pdu.Header{Transaction: tx, Destination: local, Mode: pdu.ModeAcknowledged}

	meta := pdu.Metadata{Header: header, Checksum: pdu.ChecksumCRC32, FileSize: 10, DestFilename: "dst.bin"}
	_, err := h.StateMachine(ctx, meta)
	require.NoError(t, err)

	otherTx := ids.TransactionID{SourceEntity: remote, SequenceNum: 2}
	fd := pdu.FileData{Header: pdu.Header{Transaction: otherTx, Destination: local, Mode: pdu.ModeAcknowledged}, Offset: 0, Data: []byte("x")}
	_, err = h.StateMachine(ctx, fd)
	require.ErrorIs(t, err, dest.ErrWrongTransaction)
}
