package checksum_test

import (
	"context"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/pkg/cfdp/filestore/checksum"
	"github.com/cfdpgo/entity/pkg/cfdp/filestore/localfs"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

func TestNullChecksumIsAlwaysZero(t *testing.T) {
	c := checksum.New(pdu.ChecksumNull)
	c.Update(0, []byte("anything"))
	require.Equal(t, uint32(0), c.Sum())
}

func TestModularChecksumSumsBigEndianWords(t *testing.T) {
	c := checksum.New(pdu.ChecksumModular)
	c.Update(0, []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02})
	require.Equal(t, uint32(3), c.Sum())
}

func TestModularChecksumZeroPadsLastWord(t *testing.T) {
	c := checksum.New(pdu.ChecksumModular)
	c.Update(0, []byte{0x00, 0x00, 0x00, 0x01})
	c.Update(4, []byte{0x00, 0x02}) // partial trailing word, zero-padded
	require.Equal(t, uint32(1)+uint32(0x00020000), c.Sum())
}

func TestCRC32MatchesStdlibIEEE(t *testing.T) {
	data := []byte("Hello World!")
	c := checksum.New(pdu.ChecksumCRC32)
	c.Update(0, data)
	require.Equal(t, crc32.ChecksumIEEE(data), c.Sum())
}

func TestCRC32CMatchesStdlibCastagnoli(t *testing.T) {
	data := []byte("Hello World!")
	c := checksum.New(pdu.ChecksumCRC32C)
	c.Update(0, data)
	require.Equal(t, crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli)), c.Sum())
}

func TestCRC32UpdateAcrossMultipleSegmentsMatchesWholeBuffer(t *testing.T) {
	full := []byte("the quick brown fox jumps over the lazy dog")
	c := checksum.New(pdu.ChecksumCRC32)
	c.Update(0, full[:10])
	c.Update(10, full[10:])
	require.Equal(t, crc32.ChecksumIEEE(full), c.Sum())
}

func TestComputeOverFileEmptyFile(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "empty.bin"))

	sum, err := checksum.ComputeOverFile(ctx, fs, "empty.bin", 0, 1024, pdu.ChecksumCRC32)
	require.NoError(t, err)
	require.Equal(t, crc32.ChecksumIEEE(nil), sum)
}

func TestComputeOverFileMatchesIncrementalCRC(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	require.NoError(t, fs.Create(ctx, "payload.bin"))
	require.NoError(t, fs.Append(ctx, "payload.bin", strings.NewReader("Hello World!")))

	sum, err := checksum.ComputeOverFile(ctx, fs, "payload.bin", 12, 4, pdu.ChecksumCRC32)
	require.NoError(t, err)
	require.Equal(t, crc32.ChecksumIEEE([]byte("Hello World!")), sum)
}

func TestComputeOverFileNullSkipsRead(t *testing.T) {
	ctx := context.Background()
	fs := localfs.New(t.TempDir())
	sum, err := checksum.ComputeOverFile(ctx, fs, "does-not-exist.bin", 0, 1024, pdu.ChecksumNull)
	require.NoError(t, err)
	require.Equal(t, uint32(0), sum)
}
