package remoteconfig_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
)

func TestLookupMissingEntityReturnsDefaultAndFalse(t *testing.T) {
	table := remoteconfig.NewTable()
	remote, _ := ids.NewEntityID(ids.Width4, 99)

	entry, ok := table.Lookup(remote)
	require.False(t, ok)
	require.Equal(t, remote.Value, entry.RemoteEntity.Value)
}

func TestPutThenLookupReturnsConfiguredEntry(t *testing.T) {
	table := remoteconfig.NewTable()
	remote, _ := ids.NewEntityID(ids.Width4, 5)
	entry := remoteconfig.DefaultEntry(remote)
	entry.CheckLimit = 7

	table.Put(entry)

	got, ok := table.Lookup(remote)
	require.True(t, ok)
	require.Equal(t, 7, got.CheckLimit)
}

func TestPutReplacesExistingEntry(t *testing.T) {
	table := remoteconfig.NewTable()
	remote, _ := ids.NewEntityID(ids.Width4, 5)

	e1 := remoteconfig.DefaultEntry(remote)
	e1.CheckLimit = 1
	table.Put(e1)

	e2 := remoteconfig.DefaultEntry(remote)
	e2.CheckLimit = 2
	table.Put(e2)

	got, ok := table.Lookup(remote)
	require.True(t, ok)
	require.Equal(t, 2, got.CheckLimit)
}

func TestRemoveDeletesEntry(t *testing.T) {
	table := remoteconfig.NewTable()
	remote, _ := ids.NewEntityID(ids.Width4, 5)
	table.Put(remoteconfig.DefaultEntry(remote))

	table.Remove(remote)

	_, ok := table.Lookup(remote)
	require.False(t, ok)
}

func TestListReturnsAllEntries(t *testing.T) {
	table := remoteconfig.NewTable()
	r1, _ := ids.NewEntityID(ids.Width4, 1)
	r2, _ := ids.NewEntityID(ids.Width4, 2)
	table.Put(remoteconfig.DefaultEntry(r1))
	table.Put(remoteconfig.DefaultEntry(r2))

	require.Len(t, table.List(), 2)
}
