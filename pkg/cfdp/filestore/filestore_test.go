package filestore_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/internal/bytesize"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/localfs"
)

func TestSizeLimitedZeroDisablesLimit(t *testing.T) {
	fs := localfs.New(t.TempDir())
	limited := filestore.NewSizeLimited(fs, 0)
	require.Same(t, fs, limited)
}

func TestSizeLimitedReplaceRejectsOversized(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	limited := filestore.NewSizeLimited(fs, 4*bytesize.B)

	err := limited.Replace(ctx, "a.bin", strings.NewReader("too long"))
	require.Error(t, err)
	require.ErrorIs(t, err, filestore.ErrTooLarge)
}

func TestSizeLimitedReplaceAllowsWithinLimit(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	limited := filestore.NewSizeLimited(fs, 4*bytesize.B)

	require.NoError(t, limited.Replace(ctx, "a.bin", strings.NewReader("ok!!")))

	r, err := limited.Open(ctx, "a.bin")
	require.NoError(t, err)
	defer r.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	require.Equal(t, "ok!!", buf.String())
}

func TestSizeLimitedWriterRejectsOverLimitAtOffset(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	limited := filestore.NewSizeLimited(fs, 8*bytesize.B)
	require.NoError(t, limited.Create(ctx, "a.bin"))

	w, err := limited.Writer(ctx, "a.bin", 6)
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.Error(t, err)

	var opErr *filestore.OpError
	require.True(t, errors.As(err, &opErr))
	require.ErrorIs(t, err, filestore.ErrTooLarge)
}

func TestSizeLimitedAppendRejectsOverLimit(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	limited := filestore.NewSizeLimited(fs, 6*bytesize.B)
	require.NoError(t, limited.Replace(ctx, "a.bin", strings.NewReader("abc")))

	err := limited.Append(ctx, "a.bin", strings.NewReader("defgh"))
	require.Error(t, err)
	require.ErrorIs(t, err, filestore.ErrTooLarge)
}

func TestSizeLimitedPreservesRangeReader(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	limited := filestore.NewSizeLimited(fs, 64*bytesize.B)
	require.NoError(t, limited.Replace(ctx, "a.bin", strings.NewReader("Hello World!")))

	rr := filestore.AsRangeReader(limited)
	require.NotNil(t, rr)

	buf := make([]byte, 5)
	n, err := rr.ReadAt(ctx, "a.bin", 6, buf)
	require.NoError(t, err)
	require.Equal(t, "World", string(buf[:n]))
}
