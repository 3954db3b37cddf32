package checksum

import (
	"context"
	"errors"
	"io"

	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// ComputeOverFile recomputes kind's checksum across the first
// sizeToVerify bytes of path, reading segmentLen bytes at a time. The
// destination handler uses this rather than maintaining a running
// Checksum across segment arrivals, since File-Data segments can
// arrive out of order under retransmission and CRC-32/32C are not
// associative the way MODULAR addition is — recomputing from the
// reassembled file is the only way to get a correct CRC once
// reception completes.
func ComputeOverFile(ctx context.Context, fs filestore.Filestore, path string, sizeToVerify uint64, segmentLen int, kind pdu.ChecksumType) (uint32, error) {
	if kind == pdu.ChecksumNull {
		return 0, nil
	}
	if segmentLen <= 0 {
		segmentLen = 4096
	}
	sum := New(kind)
	buf := make([]byte, segmentLen)
	var offset uint64

	if rr := filestore.AsRangeReader(fs); rr != nil {
		for offset < sizeToVerify {
			n := segmentLen
			if remaining := sizeToVerify - offset; uint64(n) > remaining {
				n = int(remaining)
			}
			read, err := rr.ReadAt(ctx, path, offset, buf[:n])
			if err != nil {
				return 0, err
			}
			if read == 0 {
				break
			}
			sum.Update(offset, buf[:read])
			offset += uint64(read)
		}
		return sum.Sum(), nil
	}

	r, err := fs.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	for offset < sizeToVerify {
		n := segmentLen
		if remaining := sizeToVerify - offset; uint64(n) > remaining {
			n = int(remaining)
		}
		read, rerr := io.ReadFull(r, buf[:n])
		if read > 0 {
			sum.Update(offset, buf[:read])
			offset += uint64(read)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				break
			}
			return 0, rerr
		}
	}
	return sum.Sum(), nil
}
