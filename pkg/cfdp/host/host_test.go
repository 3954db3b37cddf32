package host_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/pkg/cfdp/filestore/localfs"
	"github.com/cfdpgo/entity/pkg/cfdp/host"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/source"
	"github.com/cfdpgo/entity/pkg/cfdp/timer"
	"github.com/cfdpgo/entity/pkg/cfdp/user"
)

// loopback wires two Managers' Transport directly to each other's
// Deliver, in place of a real socket, so the host package can be
// exercised end to end without a wire codec.
type loopback struct {
	t        *testing.T
	peers    map[uint64]*host.Manager
	direction pdu.Direction
}

func (l *loopback) Send(ctx context.Context, destination ids.EntityID, p pdu.PDU) error {
	peer, ok := l.peers[destination.Value]
	require.True(l.t, ok, "no peer registered for entity %s", destination)
	return peer.Deliver(ctx, p, l.direction)
}

func newEntityID(t *testing.T, value uint64) ids.EntityID {
	t.Helper()
	id, err := ids.NewEntityID(ids.Width4, value)
	require.NoError(t, err)
	return id
}

func newManager(t *testing.T, local ids.EntityID, remote ids.EntityID, mode pdu.TransmissionMode) (*host.Manager, *loopback) {
	t.Helper()

	root := t.TempDir()
	fs := localfs.New(root)

	table := remoteconfig.NewTable()
	entry := remoteconfig.DefaultEntry(remote)
	entry.DefaultTransmissionMode = mode
	table.Put(entry)

	toPeer := &loopback{t: t, peers: make(map[uint64]*host.Manager)}
	cfg := host.ManagerConfig{
		LocalEntityID: local,
		RemoteConfigs: table,
		Filestore:     fs,
		Indications:   user.NewLoggingIndications(),
		Timers:        timer.NewFakeProvider(),
		Transport:     toPeer,
	}
	return host.NewManager(cfg), toPeer
}

func TestManagerUnacknowledgedTransferReachesCompletion(t *testing.T) {
	ctx := context.Background()

	sourceID := newEntityID(t, 1)
	destID := newEntityID(t, 2)

	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "payload.bin"), []byte("hello cfdp"), 0644))

	srcTable := remoteconfig.NewTable()
	srcEntry := remoteconfig.DefaultEntry(destID)
	srcEntry.DefaultTransmissionMode = pdu.ModeUnacknowledged
	srcTable.Put(srcEntry)

	dstTable := remoteconfig.NewTable()
	dstEntry := remoteconfig.DefaultEntry(sourceID)
	dstEntry.DefaultTransmissionMode = pdu.ModeUnacknowledged
	dstTable.Put(dstEntry)

	srcTransport := &loopback{t: t, peers: make(map[uint64]*host.Manager), direction: pdu.DirectionToReceiver}
	dstTransport := &loopback{t: t, peers: make(map[uint64]*host.Manager), direction: pdu.DirectionToSender}

	srcMgr := host.NewManager(host.ManagerConfig{
		LocalEntityID: sourceID,
		RemoteConfigs: srcTable,
		Filestore:     localfs.New(srcRoot),
		Indications:   user.NewLoggingIndications(),
		Timers:        timer.NewFakeProvider(),
		Transport:     srcTransport,
	})
	dstMgr := host.NewManager(host.ManagerConfig{
		LocalEntityID: destID,
		RemoteConfigs: dstTable,
		Filestore:     localfs.New(dstRoot),
		Indications:   user.NewLoggingIndications(),
		Timers:        timer.NewFakeProvider(),
		Transport:     dstTransport,
	})

	srcTransport.peers[destID.Value] = dstMgr
	dstTransport.peers[sourceID.Value] = srcMgr

	_, err := srcMgr.Submit(ctx, source.PutRequest{
		DestinationID:  destID,
		SourceFilename: "payload.bin",
		DestFilename:   "received.bin",
	})
	require.NoError(t, err)

	// The loopback transport delivers every PDU inline, so by the time
	// Submit returns both handlers have already run their whole
	// self-clocked cascade (Metadata, File-Data, EOF, completion) back
	// to IDLE; they are just not yet reaped from their Manager's
	// registry until that Manager's own Tick runs.
	got, err := os.ReadFile(filepath.Join(dstRoot, "received.bin"))
	require.NoError(t, err)
	require.Equal(t, "hello cfdp", string(got))

	require.NoError(t, srcMgr.Tick(ctx, time.Second))
	require.NoError(t, dstMgr.Tick(ctx, time.Second))

	srcCount, _ := srcMgr.ActiveTransactions()
	_, dstCount := dstMgr.ActiveTransactions()
	require.Equal(t, 0, srcCount)
	require.Equal(t, 0, dstCount, "unacknowledged transfer completes on the receiving side without a Finished round trip")
}

func TestManagerDeliverUnknownTransactionToSourceFails(t *testing.T) {
	ctx := context.Background()
	local := newEntityID(t, 1)
	remote := newEntityID(t, 2)

	m, _ := newManager(t, local, remote, pdu.ModeAcknowledged)

	ack := pdu.ACK{Header: pdu.Header{
		Transaction: ids.TransactionID{SourceEntity: local, SequenceNum: 99},
		Destination: remote,
	}}
	err := m.Deliver(ctx, ack, pdu.DirectionToSender)
	require.ErrorIs(t, err, host.ErrUnknownTransaction)
}

func TestSequenceCounterMonotonic(t *testing.T) {
	c := host.NewSequenceCounter(16)
	first, width, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, 16, width)
	second, _, err := c.Next()
	require.NoError(t, err)
	require.Greater(t, second, first)
}

func TestFleetSubmitUnknownEntity(t *testing.T) {
	ctx := context.Background()
	f := host.NewFleet()
	_, err := f.Submit(ctx, newEntityID(t, 42), source.PutRequest{})
	require.ErrorIs(t, err, host.ErrFleetUnknownEntity)
}

func TestFleetRegisterAndLookup(t *testing.T) {
	local := newEntityID(t, 7)
	remote := newEntityID(t, 8)
	m, _ := newManager(t, local, remote, pdu.ModeAcknowledged)

	f := host.NewFleet()
	f.Register(m)

	got, ok := f.Manager(local)
	require.True(t, ok)
	require.Same(t, m, got)

	_, ok = f.Manager(remote)
	require.False(t, ok)
}
