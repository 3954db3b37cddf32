package localfs_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/localfs"
)

func TestCreateThenExistsAndSize(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())

	ok, err := fs.FileExists(ctx, "a.bin")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, fs.Create(ctx, "a.bin"))

	ok, err = fs.FileExists(ctx, "a.bin")
	require.NoError(t, err)
	require.True(t, ok)

	size, err := fs.FileSize(ctx, "a.bin")
	require.NoError(t, err)
	require.Equal(t, uint64(0), size)
}

func TestCreateAlreadyExistsErrors(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "a.bin"))

	err := fs.Create(ctx, "a.bin")
	require.Error(t, err)
	require.ErrorIs(t, err, filestore.ErrAlreadyExists)
}

func TestWriterAtOffsetThenRead(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "f.bin"))

	w, err := fs.Writer(ctx, "f.bin", 0)
	require.NoError(t, err)
	_, err = w.Write([]byte("Hello World!"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := fs.Open(ctx, "f.bin")
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "Hello World!", string(got))
}

func TestWriterAtNonZeroOffsetExtendsFile(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "f.bin"))

	w, err := fs.Writer(ctx, "f.bin", 4)
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	size, err := fs.FileSize(ctx, "f.bin")
	require.NoError(t, err)
	require.Equal(t, uint64(8), size)
}

func TestReplaceOverwritesFullContents(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "f.bin"))
	require.NoError(t, fs.Append(ctx, "f.bin", strings.NewReader("original content")))

	require.NoError(t, fs.Replace(ctx, "f.bin", strings.NewReader("new")))

	size, err := fs.FileSize(ctx, "f.bin")
	require.NoError(t, err)
	require.Equal(t, uint64(3), size)
}

func TestDeleteMissingFileErrorsNotFound(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	err := fs.Delete(ctx, "missing.bin")
	require.ErrorIs(t, err, filestore.ErrNotFound)
}

func TestDenyFileIsNoOpWhenAbsent(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.DenyFile(ctx, "missing.bin"))
}

func TestDenyFileRemovesExisting(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "f.bin"))
	require.NoError(t, fs.DenyFile(ctx, "f.bin"))

	ok, err := fs.FileExists(ctx, "f.bin")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateDirectoryAndRemoveDirectory(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.CreateDirectory(ctx, "sub"))

	err := fs.RemoveDirectory(ctx, "sub")
	require.NoError(t, err)
}

func TestRemoveDirectoryNotEmptyErrors(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.CreateDirectory(ctx, "sub"))
	require.NoError(t, fs.Create(ctx, "sub/f.bin"))

	err := fs.RemoveDirectory(ctx, "sub")
	require.ErrorIs(t, err, filestore.ErrDirectoryNotEmpty)
}

func TestReadAtImplementsRangeReader(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "f.bin"))
	require.NoError(t, fs.Append(ctx, "f.bin", strings.NewReader("0123456789")))

	rr := filestore.AsRangeReader(fs)
	require.NotNil(t, rr)

	buf := make([]byte, 4)
	n, err := rr.ReadAt(ctx, "f.bin", 3, buf)
	require.NoError(t, err)
	require.Equal(t, "3456", string(buf[:n]))
}

func TestRenameMovesFile(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "old.bin"))
	require.NoError(t, fs.Rename(ctx, "old.bin", "new.bin"))

	ok, err := fs.FileExists(ctx, "old.bin")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = fs.FileExists(ctx, "new.bin")
	require.NoError(t, err)
	require.True(t, ok)
}
